// Package session owns the per-conversation state: history, turn controller
// and the currently staged uploads.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HitoniYori/ijime-support-ai/internal/agent"
	"github.com/HitoniYori/ijime-support-ai/internal/content"
	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

var (
	ErrNoArchive = errors.New("snapshot archive is not configured")
	ErrClosed    = errors.New("session is closed")
)

// Options configures new sessions.
type Options struct {
	Greeting string
	Content  content.Options
	Archive  *history.Archive // optional
}

// Session is one conversation. Staged uploads stay selected across turns
// until ClearUploads and are re-read for every turn.
type Session struct {
	ID        string
	CreatedAt time.Time

	// turn is held for a whole turn and by anything that replaces the
	// conversation, so a turn's two entries are never split.
	turn sync.Mutex

	mu          sync.Mutex
	store       *history.Store
	ctrl        *agent.Controller
	archive     *history.Archive
	uploads     []evidence.File
	uploaderKey int
	closed      bool
}

// New starts a session with a fresh id and a store holding the greeting.
func New(backend llm.Backend, opts Options) *Session {
	store := history.NewStore(opts.Greeting)
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		store:     store,
		ctrl:      agent.NewController(backend, store, opts.Content),
		archive:   opts.Archive,
	}
	logger.L.Info("session started", "session", s.ID)
	return s
}

// Stage adds files to the upload selection.
func (s *Session) Stage(files ...evidence.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, files...)
}

// Uploads returns the staged files in upload order.
func (s *Session) Uploads() []evidence.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evidence.File, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// ClearUploads drops every staged file and returns the new uploader key,
// which UIs use to reset their file pickers.
func (s *Session) ClearUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = nil
	s.uploaderKey++
	return s.uploaderKey
}

// UploaderKey returns the current uploader key.
func (s *Session) UploaderKey() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaderKey
}

// Submit runs one turn with the staged uploads. A second Submit while a
// turn is running fails with agent.ErrTurnInFlight.
func (s *Session) Submit(ctx context.Context, text string) (agent.Outcome, error) {
	if !s.turn.TryLock() {
		return agent.Outcome{}, agent.ErrTurnInFlight
	}
	defer s.turn.Unlock()

	s.mu.Lock()
	closed := s.closed
	files := make([]evidence.File, len(s.uploads))
	copy(files, s.uploads)
	s.mu.Unlock()
	if closed {
		return agent.Outcome{}, ErrClosed
	}
	return s.ctrl.Submit(ctx, text, files)
}

// History returns the displayed turns. During a turn it already holds the
// user entry.
func (s *Session) History() []history.Turn {
	return s.store.All()
}

// Reset clears the conversation back to the greeting, waiting for a running
// turn to settle first.
func (s *Session) Reset() {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.store.Reset()
	logger.L.Info("history reset", "session", s.ID)
}

// Export serialises the conversation.
func (s *Session) Export() ([]byte, error) {
	return s.store.Export()
}

// Import replaces the conversation; on error it is left untouched.
func (s *Session) Import(data []byte) error {
	s.turn.Lock()
	defer s.turn.Unlock()
	if err := s.store.Import(data); err != nil {
		logger.L.Warn("history import rejected", "session", s.ID, "error", err)
		return err
	}
	logger.L.Info("history imported", "session", s.ID, "turns", s.store.Len())
	return nil
}

// SaveSnapshot stores the conversation in the archive under label.
func (s *Session) SaveSnapshot(ctx context.Context, label string) (history.Snapshot, error) {
	if s.archive == nil {
		return history.Snapshot{}, ErrNoArchive
	}
	if label == "" {
		label = time.Now().Format("2006-01-02 15:04")
	}
	return s.archive.Save(ctx, s.ID, label, s.store)
}

// RestoreSnapshot replaces the conversation with an archived one.
func (s *Session) RestoreSnapshot(ctx context.Context, id int64) error {
	s.turn.Lock()
	defer s.turn.Unlock()
	if s.archive == nil {
		return ErrNoArchive
	}
	return s.archive.Load(ctx, id, s.store)
}

// Close ends the session. Later turns fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.uploads = nil
	logger.L.Info("session closed", "session", s.ID)
}
