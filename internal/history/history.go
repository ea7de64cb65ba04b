// Package history keeps the displayed conversation, converts it to backend
// history for every turn, and persists it on request.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// PersistenceError reports an import payload that is not a list of turns.
type PersistenceError struct {
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid history file: %s: %v", e.Reason, e.Err)
	}
	return "invalid history file: " + e.Reason
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const turnsSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["role", "content"],
    "properties": {
      "role": {"type": "string", "enum": ["user", "assistant"]},
      "content": {"type": "string"}
    }
  }
}`

var turnsSchema = mustSchema(turnsSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("history: compile schema: %v", err))
	}
	return s
}

// Store is the ordered log of displayed turns for one session. It is safe
// for concurrent use; readers see a turn's user entry before its reply lands.
type Store struct {
	greeting string

	mu    sync.RWMutex
	turns []Turn
}

// NewStore returns a store holding only the greeting. An empty greeting
// starts the store empty.
func NewStore(greeting string) *Store {
	s := &Store{greeting: greeting}
	s.Reset()
	return s
}

// Append adds a turn at the end.
func (s *Store) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// All returns a copy of every turn in chronological order.
func (s *Store) All() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Reset clears the store back to the greeting.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	if s.greeting != "" {
		s.turns = []Turn{{Role: RoleAssistant, Content: s.greeting}}
	}
}

// Export serialises the store as a UTF-8 JSON array of {role, content}.
func (s *Store) Export() ([]byte, error) {
	data, _, err := s.export()
	return data, err
}

// export also reports how many turns the payload holds.
func (s *Store) export() ([]byte, int, error) {
	turns := s.All()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(turns); err != nil {
		return nil, 0, fmt.Errorf("encode history: %w", err)
	}
	return buf.Bytes(), len(turns), nil
}

// Import replaces every turn with the decoded payload. On any error the
// store is left as it was.
func (s *Store) Import(data []byte) error {
	turns, err := decodeTurns(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.turns = turns
	s.mu.Unlock()
	return nil
}

func decodeTurns(data []byte) ([]Turn, error) {
	res, err := turnsSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &PersistenceError{Reason: "not valid JSON", Err: err}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &PersistenceError{Reason: strings.Join(msgs, "; ")}
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, &PersistenceError{Reason: "decode turns", Err: err}
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
