package agent

import (
	"regexp"
	"strings"
)

// scriptFence matches the first fenced powershell block. Only the
// ```powershell tag requests an execution; bare or differently tagged
// fences are prose.
var scriptFence = regexp.MustCompile("(?s)```powershell[ \t]*\n(.*?)```")

// extractScript returns the body of the first fenced powershell block in
// reply, trimmed. found is false when the reply carries no such block,
// which makes the reply the final answer of the turn.
func extractScript(reply string) (script string, found bool) {
	m := scriptFence.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
