// Package agent runs one conversation turn at a time against the model backend.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/HitoniYori/ijime-support-ai/internal/content"
	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

// FSM States
type FSMState string

const (
	StateIdle      FSMState = "Idle"
	StateComposing FSMState = "Composing"
	StateSending   FSMState = "Sending"
	StateSucceeded FSMState = "Succeeded"
	StateFailed    FSMState = "Failed"
)

// FSM Triggers
type FSMTrigger string

const (
	TriggerSubmit        FSMTrigger = "Submit"
	TriggerContentReady  FSMTrigger = "ContentReady"
	TriggerNothingToDo   FSMTrigger = "NothingToSend"
	TriggerReplied       FSMTrigger = "Replied"
	TriggerErrorOccurred FSMTrigger = "ErrorOccurred"
	TriggerSettle        FSMTrigger = "Settle"
)

var (
	// ErrTurnInFlight is returned when Submit is called before the previous turn settled.
	ErrTurnInFlight = errors.New("a turn is already in progress")
	// ErrNothingToSend is returned when there is no text and no readable evidence.
	ErrNothingToSend = errors.New("nothing to send: enter a message or attach a readable file")
)

// Outcome is what one submitted turn produced.
type Outcome struct {
	Reply     string
	Warnings  []string
	Fragments []evidence.Fragment
	Failure   *Failure
}

// turn is the scratch data of the turn being processed.
type turn struct {
	text    string
	files   []evidence.File
	parts   []llm.Part
	outcome Outcome
	reply   string
	err     error
}

// Controller drives Idle -> Composing -> Sending -> Succeeded|Failed -> Idle
// for a single history store.
type Controller struct {
	backend llm.Backend
	store   *history.Store
	opts    content.Options
	params  llm.Params

	mu   sync.Mutex
	fsm  *stateless.StateMachine
	turn *turn
}

// NewController returns a controller appending to store.
func NewController(backend llm.Backend, store *history.Store, opts content.Options) *Controller {
	c := &Controller{
		backend: backend,
		store:   store,
		opts:    opts,
		params:  llm.DefaultParams(),
	}
	c.fsm = c.newFSM()
	return c
}

func (c *Controller) newFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StateComposing)

	// State: Composing
	// Action: normalize the uploads and assemble the outgoing content.
	fsm.Configure(StateComposing).
		OnEntry(func(ctx context.Context, args ...any) error {
			t := c.turn
			report := evidence.NormalizeAll(t.files)
			t.outcome.Warnings = report.Warnings()
			t.outcome.Fragments = report.Fragments()

			if strings.TrimSpace(t.text) == "" && len(t.outcome.Fragments) == 0 {
				logger.L.Debug("FSM: nothing to send", "files", len(t.files))
				return fsm.FireCtx(ctx, TriggerNothingToDo)
			}
			t.parts = content.Assemble(t.text, t.outcome.Fragments, c.opts)
			return fsm.FireCtx(ctx, TriggerContentReady)
		}).
		Permit(TriggerContentReady, StateSending).
		Permit(TriggerNothingToDo, StateIdle)

	// State: Sending
	// Action: record the user turn, rebuild history without it, call the backend once.
	fsm.Configure(StateSending).
		OnEntry(func(ctx context.Context, args ...any) error {
			t := c.turn
			c.store.Append(history.Turn{Role: history.RoleUser, Content: t.text})
			hist := history.Reconstruct(c.store.All(), true)
			logger.L.Debug("FSM: sending turn", "history", len(hist), "parts", len(t.parts))

			resp, err := c.backend.Send(ctx, hist, t.parts, c.params)
			if err == nil && strings.TrimSpace(resp.Text) == "" {
				err = llm.ErrEmptyResponse
			}
			if err != nil {
				t.err = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			t.reply = resp.Text
			return fsm.FireCtx(ctx, TriggerReplied)
		}).
		Permit(TriggerReplied, StateSucceeded).
		Permit(TriggerErrorOccurred, StateFailed)

	fsm.Configure(StateSucceeded).
		OnEntry(func(ctx context.Context, args ...any) error {
			c.store.Append(history.Turn{Role: history.RoleAssistant, Content: c.turn.reply})
			c.turn.outcome.Reply = c.turn.reply
			return fsm.FireCtx(ctx, TriggerSettle)
		}).
		Permit(TriggerSettle, StateIdle)

	fsm.Configure(StateFailed).
		OnEntry(func(ctx context.Context, args ...any) error {
			f := NewFailure(c.turn.err)
			logger.L.Error("LLM call failed", "kind", f.Kind, "error", c.turn.err)
			c.turn.outcome.Failure = f
			return fsm.FireCtx(ctx, TriggerSettle)
		}).
		Permit(TriggerSettle, StateIdle)

	fsm.OnTransitioned(func(_ context.Context, tr stateless.Transition) {
		logger.L.Debug("FSM transition", "from", tr.Source, "to", tr.Destination, "trigger", tr.Trigger)
	})
	return fsm
}

// Submit runs one turn to completion. Backend failures are reported in
// Outcome.Failure with a nil error; the error is reserved for turns that
// never reached the backend.
func (c *Controller) Submit(ctx context.Context, text string, files []evidence.File) (Outcome, error) {
	if !c.mu.TryLock() {
		return Outcome{}, ErrTurnInFlight
	}
	defer c.mu.Unlock()

	if state := c.State(); state != StateIdle {
		return Outcome{}, fmt.Errorf("%w (state %s)", ErrTurnInFlight, state)
	}

	c.turn = &turn{text: text, files: files}
	defer func() { c.turn = nil }()

	if err := c.fsm.FireCtx(ctx, TriggerSubmit); err != nil {
		// A failed action can leave the machine mid-turn; start over from Idle.
		c.fsm = c.newFSM()
		return Outcome{}, fmt.Errorf("turn state machine: %w", err)
	}

	out := c.turn.outcome
	if c.turn.parts == nil {
		return out, ErrNothingToSend
	}
	return out, nil
}

// Busy reports whether a turn is being processed.
func (c *Controller) Busy() bool {
	if !c.mu.TryLock() {
		return true
	}
	c.mu.Unlock()
	return false
}

// State returns the current FSM state.
func (c *Controller) State() FSMState {
	s, err := c.fsm.State(context.Background())
	if err != nil {
		return StateIdle
	}
	return s.(FSMState)
}
