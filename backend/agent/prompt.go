package agent

import (
	"strings"

	"github.com/emberhq/ember/backend/tool"
)

const promptPreamble = `You are a helpful AI coding assistant. You have access to tools to help you complete tasks.`

const promptRules = `## How to Call Tools

To use a tool, include a tool call block in your response:

` + "```tool" + `
{"name": "tool_name", "arguments": {"arg1": "value1"}}
` + "```" + `

Example:
` + "```tool" + `
{"name": "read_file", "arguments": {"path": "README.md"}}
` + "```" + `

## Important Rules

1. Call ONE tool at a time and wait for the result before calling another
2. After receiving tool results, analyze them and decide next steps
3. When your task is complete, provide a clear final answer WITHOUT any tool blocks
4. Think step by step about what you need to do

Begin by analyzing the task and determining what information you need.`

// SystemPrompt renders the instructions for a registry. The tool list
// comes from the same descriptors the dispatcher validates against, so
// the two cannot disagree.
func SystemPrompt(registry *tool.Registry) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n## Available Tools\n\n")
	b.WriteString(tool.Catalog(registry))
	b.WriteString("\n")
	b.WriteString(promptRules)
	return b.String()
}
