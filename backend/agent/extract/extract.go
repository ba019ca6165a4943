// Package extract recovers tool invocations from free-form model output.
// Models without native tool calling are instructed to emit calls in one of
// three textual conventions; this package finds them all, in document
// order, and silently skips anything that does not parse.
package extract

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ToolCall is one parsed invocation. Arguments preserve JSON types:
// strings, float64 numbers, bools, nested maps and slices.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Strategy finds candidate calls using one textual convention.
type Strategy interface {
	Extract(content string) []ToolCall
}

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```tool\\s*\\n?(.*?)\\n?```")
	tagPairRegex     = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)
)

// FencedBlock matches ```tool fenced code blocks, the convention the
// system prompt asks for.
type FencedBlock struct{}

func (FencedBlock) Extract(content string) []ToolCall {
	return parseAll(fencedBlockRegex.FindAllStringSubmatch(content, -1))
}

// TagPair matches <tool_call>...</tool_call> elements, which some models
// emit from their native fine-tuning regardless of instructions.
type TagPair struct{}

func (TagPair) Extract(content string) []ToolCall {
	return parseAll(tagPairRegex.FindAllStringSubmatch(content, -1))
}

func parseAll(matches [][]string) []ToolCall {
	var calls []ToolCall
	for _, match := range matches {
		if call, ok := parseCall(match[1]); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func parseCall(candidate string) (ToolCall, bool) {
	var call ToolCall
	if err := json.Unmarshal([]byte(candidate), &call); err != nil {
		return ToolCall{}, false
	}
	if call.Name == "" {
		return ToolCall{}, false
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return call, true
}

// BareObject scans for raw JSON objects with "name" and "arguments" keys
// outside any fence or tag. It is the loosest convention, so its finds are
// deduplicated against calls the stricter strategies already produced.
type BareObject struct{}

func (BareObject) Extract(content string) []ToolCall {
	var calls []ToolCall
	for offset := 0; offset < len(content); {
		start := strings.IndexByte(content[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		candidate, length := balancedObject(content[start:])
		if length == 0 {
			offset = start + 1
			continue
		}

		parsed := gjson.Parse(candidate)
		if parsed.Get("name").Type == gjson.String && parsed.Get("arguments").IsObject() {
			if call, ok := parseCall(candidate); ok {
				calls = append(calls, call)
				offset = start + length
				continue
			}
		}
		offset = start + 1
	}
	return calls
}

// balancedObject returns the complete JSON object at the start of s, or a
// zero length if s does not begin with one. A real decoder handles braces
// inside string literals, which a bracket counter would trip over.
func balancedObject(s string) (string, int) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(s)))
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return "", 0
	}
	if len(raw) == 0 || raw[0] != '{' {
		return "", 0
	}
	return string(raw), int(decoder.InputOffset())
}

// Extractor runs every convention against a response.
type Extractor struct {
	strategies []Strategy
}

func NewExtractor() *Extractor {
	return &Extractor{
		strategies: []Strategy{FencedBlock{}, TagPair{}, BareObject{}},
	}
}

// Extract returns all calls found in content. Fenced and tagged calls come
// first in document order; bare objects follow, dropped when structurally
// equal to a call already collected (a fenced block's payload is itself a
// bare object, so every fenced call would otherwise appear twice).
func (e *Extractor) Extract(content string) []ToolCall {
	var calls []ToolCall
	for i, strategy := range e.strategies {
		found := strategy.Extract(content)
		if i == len(e.strategies)-1 {
			for _, call := range found {
				if !containsCall(calls, call) {
					calls = append(calls, call)
				}
			}
			continue
		}
		calls = append(calls, found...)
	}
	return calls
}

func containsCall(calls []ToolCall, call ToolCall) bool {
	for _, existing := range calls {
		if existing.Name == call.Name && reflect.DeepEqual(existing.Arguments, call.Arguments) {
			return true
		}
	}
	return false
}
