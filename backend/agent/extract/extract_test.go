package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []ToolCall
	}{
		{
			name: "fenced block",
			content: "Let me read that file.\n\n```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "main.go"}}` +
				"\n```\n",
			want: []ToolCall{
				{Name: "read_file", Arguments: map[string]any{"file_path": "main.go"}},
			},
		},
		{
			name: "multiple fenced blocks keep document order",
			content: "```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "a.go"}}` +
				"\n```\nthen\n```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "b.go"}}` +
				"\n```",
			want: []ToolCall{
				{Name: "read_file", Arguments: map[string]any{"file_path": "a.go"}},
				{Name: "read_file", Arguments: map[string]any{"file_path": "b.go"}},
			},
		},
		{
			name: "tool_call tags",
			content: "<tool_call>\n" +
				`{"name": "bash", "arguments": {"command": "ls"}}` +
				"\n</tool_call>",
			want: []ToolCall{
				{Name: "bash", Arguments: map[string]any{"command": "ls"}},
			},
		},
		{
			name:    "bare json object",
			content: `I'll run {"name": "glob_search", "arguments": {"pattern": "**/*.go"}} now.`,
			want: []ToolCall{
				{Name: "glob_search", Arguments: map[string]any{"pattern": "**/*.go"}},
			},
		},
		{
			name: "bare duplicate of fenced call is dropped",
			content: "```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "main.go"}}` +
				"\n```",
			want: []ToolCall{
				{Name: "read_file", Arguments: map[string]any{"file_path": "main.go"}},
			},
		},
		{
			name: "bare object with different arguments survives dedup",
			content: "```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "a.go"}}` +
				"\n```\nand also {\"name\": \"read_file\", \"arguments\": {\"file_path\": \"b.go\"}}",
			want: []ToolCall{
				{Name: "read_file", Arguments: map[string]any{"file_path": "a.go"}},
				{Name: "read_file", Arguments: map[string]any{"file_path": "b.go"}},
			},
		},
		{
			name:    "malformed json skipped silently",
			content: "```tool\n{\"name\": \"read_file\", \"arguments\": {broken}\n```",
			want:    nil,
		},
		{
			name: "malformed block does not hide later valid block",
			content: "```tool\n{not json}\n```\n```tool\n" +
				`{"name": "bash", "arguments": {"command": "pwd"}}` +
				"\n```",
			want: []ToolCall{
				{Name: "bash", Arguments: map[string]any{"command": "pwd"}},
			},
		},
		{
			name:    "plain prose yields nothing",
			content: "The refactoring is complete. All tests should pass now.",
			want:    nil,
		},
		{
			name:    "json without name and arguments ignored",
			content: `Here is the config: {"host": "localhost", "port": 8080}`,
			want:    nil,
		},
		{
			name: "nested objects in arguments",
			content: "```tool\n" +
				`{"name": "write_file", "arguments": {"file_path": "cfg.json", "content": "{\"a\": 1}"}}` +
				"\n```",
			want: []ToolCall{
				{Name: "write_file", Arguments: map[string]any{
					"file_path": "cfg.json",
					"content":   `{"a": 1}`,
				}},
			},
		},
		{
			name:    "missing arguments defaults to empty map",
			content: "<tool_call>{\"name\": \"bash\"}</tool_call>",
			want: []ToolCall{
				{Name: "bash", Arguments: map[string]any{}},
			},
		},
		{
			name: "thinking text around calls",
			content: "<think>I should inspect the file first.</think>\n" +
				"```tool\n" +
				`{"name": "read_file", "arguments": {"file_path": "go.mod"}}` +
				"\n```",
			want: []ToolCall{
				{Name: "read_file", Arguments: map[string]any{"file_path": "go.mod"}},
			},
		},
	}

	extractor := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.content)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBalancedObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		want       string
		wantLength int
	}{
		{
			name:       "simple object",
			input:      `{"a": 1} trailing`,
			want:       `{"a": 1}`,
			wantLength: 8,
		},
		{
			name:       "braces inside string literal",
			input:      `{"content": "func f() { return }"}`,
			want:       `{"content": "func f() { return }"}`,
			wantLength: len(`{"content": "func f() { return }"}`),
		},
		{
			name:  "unterminated object",
			input: `{"a": 1`,
			want:  "",
		},
		{
			name:  "not an object",
			input: `[1, 2, 3]`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, length := balancedObject(tt.input)
			if got != tt.want {
				t.Errorf("balancedObject() = %q, want %q", got, tt.want)
			}
			if tt.wantLength != 0 && length != tt.wantLength {
				t.Errorf("balancedObject() length = %d, want %d", length, tt.wantLength)
			}
		})
	}
}
