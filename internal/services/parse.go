package services

import "strings"

// stripJSONFence removes a markdown code fence from model output. Models wrap
// JSON in ```json fences often enough that every parse goes through here
// first, and sometimes lead with prose before the fence; parsing starts at
// the first fence when one exists.
func stripJSONFence(s string) string {
	out := strings.TrimSpace(s)
	i := strings.Index(out, "```")
	if i < 0 {
		return out
	}
	out = out[i:]
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	if j := strings.LastIndex(out, "```"); j >= 0 {
		out = out[:j]
	}
	return strings.TrimSpace(out)
}
