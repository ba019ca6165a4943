package model

import "regexp"

var thinkBlockRegex = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// StripThinking removes <think>...</think> blocks that reasoning models
// (deepseek-r1, qwq) emit before their answer. History keeps the raw
// content; this is for presenting final answers only.
func StripThinking(content string) string {
	return thinkBlockRegex.ReplaceAllString(content, "")
}
