package history

import (
	"strings"

	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

// Reconstruct derives backend history from displayed turns. With excludingLast
// the most recent turn is left out because it is sent as the new content.
// Blank turns are skipped; same-role runs are kept as they are.
func Reconstruct(turns []Turn, excludingLast bool) []llm.HistoryEntry {
	if excludingLast && len(turns) > 0 {
		turns = turns[:len(turns)-1]
	}

	out := make([]llm.HistoryEntry, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role := llm.RoleUser
		if t.Role == RoleAssistant {
			role = llm.RoleModel
		}
		out = append(out, llm.HistoryEntry{Role: role, Parts: []string{t.Content}})
	}
	return out
}
