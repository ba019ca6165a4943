// Package tool declares the closed set of capabilities the agent can
// execute and dispatches invocations to them. Executors never let failures
// escape as errors: anything that goes wrong becomes an "Error: ..." text
// result so the conversation can continue.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

var ErrUnknownTool = errors.New("unknown tool")

type Handler func(ctx context.Context, input json.RawMessage) string

type ToolOptions struct {
	Readonly bool
}

type ToolOption func(*ToolOptions)

func WithReadonly(readonly bool) ToolOption {
	return func(o *ToolOptions) {
		o.Readonly = readonly
	}
}

// Param is one argument of a tool, in declaration order of the input
// struct. The catalog renders these for the model.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

type Tool struct {
	Name        string
	Description string
	Schema      map[string]interface{}
	Params      []Param
	Required    []string
	Readonly    bool
	Handler     Handler
}

// NewTool builds a descriptor whose argument schema is reflected from the
// typed input struct, so the catalog shown to the model and the dispatch
// contract cannot drift apart.
func NewTool[T any](name, description string, handler func(ctx context.Context, input T) string, opts ...ToolOption) Tool {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	options := &ToolOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var toolInput T
	inputSchema := reflector.Reflect(toolInput)
	paramSchema := map[string]interface{}{
		"type":       "object",
		"properties": inputSchema.Properties,
	}
	if len(inputSchema.Required) > 0 {
		paramSchema["required"] = inputSchema.Required
	}

	required := make(map[string]bool, len(inputSchema.Required))
	for _, field := range inputSchema.Required {
		required[field] = true
	}
	var params []Param
	for pair := inputSchema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		kind := pair.Value.Type
		if kind == "" {
			kind = "string"
		}
		params = append(params, Param{
			Name:        pair.Key,
			Type:        kind,
			Description: pair.Value.Description,
			Required:    required[pair.Key],
		})
	}

	genericHandler := func(ctx context.Context, input json.RawMessage) string {
		var toolInput T
		if err := json.Unmarshal(input, &toolInput); err != nil {
			return fmt.Sprintf("Error: Invalid arguments for tool %s: %v", name, err)
		}
		return handler(ctx, toolInput)
	}

	return Tool{
		Name:        name,
		Description: description,
		Schema:      paramSchema,
		Params:      params,
		Required:    inputSchema.Required,
		Readonly:    options.Readonly,
		Handler:     genericHandler,
	}
}

// Registry is the fixed set of named capabilities. It is immutable after
// construction and stateless beyond dispatch.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.tools[t.Name]; exists {
			continue
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches one invocation. An unregistered name is the only error
// condition; every other failure surfaces inside the text result.
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	for _, required := range t.Required {
		if _, present := arguments[required]; !present {
			return fmt.Sprintf("Error: Missing required argument %q for tool %s", required, name), nil
		}
	}

	raw, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Sprintf("Error: Invalid arguments for tool %s: %v", name, err), nil
	}

	return t.Handler(ctx, raw), nil
}
