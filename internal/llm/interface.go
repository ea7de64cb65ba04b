package llm

import (
	"context"
)

// Backend is the single call the turn controller makes per turn; it is easy to mock in tests.
// history holds earlier turns only; content is the outgoing user turn.
type Backend interface {
	Send(ctx context.Context, history []HistoryEntry, content []Part, params Params) (Response, error)
}
