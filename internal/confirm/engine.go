// Package confirm implements the confirmation workflow: at most one pending
// request, resolved exactly once by confirm or cancel.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"ride-console/internal/event"
	"ride-console/internal/model"
)

const (
	DefaultConfirmText = "Confirm"
	DefaultCancelText  = "Cancel"
)

type State string

const (
	StateIdle      State = "idle"
	StateOpen      State = "open"
	StateResolving State = "resolving"
)

const (
	ReasonCancelled    = "cancelled"
	ReasonReplaced     = "replaced"
	ReasonSessionEnded = "session_ended"
)

type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Input is a numeric choice shown inside the dialog, such as a suspension
// length. The confirmed value must be one of Options.
type Input struct {
	Label   string   `json:"label"`
	Options []Option `json:"options"`
	Default int      `json:"default"`
}

func (in *Input) allows(value int) bool {
	for _, option := range in.Options {
		if option.Value == value {
			return true
		}
	}
	return false
}

type Request struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	ActionType  string    `json:"action_type"`
	ConfirmText string    `json:"confirm_text"`
	CancelText  string    `json:"cancel_text"`
	Input       *Input    `json:"input,omitempty"`
	OwnerID     int64     `json:"owner_id,omitempty"`
	OpenedAt    time.Time `json:"opened_at"`
}

// CommitFunc runs the confirmed action. value is the chosen input option,
// or zero when the request has no input.
type CommitFunc func(ctx context.Context, value int)

type Resolution struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
	Value  *int   `json:"value,omitempty"`
}

type pending struct {
	request Request
	commit  CommitFunc
}

// Engine is the {idle, open, resolving} state machine. Commits run on their
// own goroutines with the engine's base context, so they outlive the HTTP
// request that confirmed them.
//
// A request belongs to the user that opened it (OwnerID); only that user
// can see or resolve it.
type Engine struct {
	base context.Context
	bus  event.Bus
	now  func() time.Time

	// publishMu keeps lifecycle events in the order the state changed.
	// Always taken before mu.
	publishMu sync.Mutex

	mu       sync.Mutex
	current  *pending
	inflight int
	wg       sync.WaitGroup
}

func NewEngine(base context.Context, bus event.Bus) *Engine {
	if bus == nil {
		bus = event.Discard{}
	}
	return &Engine{base: base, bus: bus, now: time.Now}
}

// Open shows a new request. A request already open is replaced: its commit
// is discarded and a cancellation with reason "replaced" is published.
func (e *Engine) Open(req Request, commit CommitFunc) Request {
	req.ID = uuid.NewString()
	req.OpenedAt = e.now().UTC()
	if req.ConfirmText == "" {
		req.ConfirmText = DefaultConfirmText
	}
	if req.CancelText == "" {
		req.CancelText = DefaultCancelText
	}
	if req.Input != nil {
		input := *req.Input
		input.Options = append([]Option(nil), req.Input.Options...)
		req.Input = &input
	}

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	replaced := e.current
	e.current = &pending{request: req, commit: commit}
	e.mu.Unlock()

	if replaced != nil {
		slog.Info("confirmation replaced", "replaced_id", replaced.request.ID, "id", req.ID)
		e.bus.Publish(event.New(event.TypeConfirmationCancelled, Resolution{ID: replaced.request.ID, Reason: ReasonReplaced}))
	}
	e.bus.Publish(event.New(event.TypeConfirmationOpened, req))

	return req
}

// Confirm closes the open request and starts its commit. An invalid choice
// leaves the request open.
func (e *Engine) Confirm(id string, owner int64, value *int) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	current, err := e.matchLocked(id, owner)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	chosen := 0
	if input := current.request.Input; input != nil {
		chosen = input.Default
		if value != nil {
			chosen = *value
		}
		if !input.allows(chosen) {
			e.mu.Unlock()
			return fmt.Errorf("%w: %d", model.ErrInvalidChoice, chosen)
		}
	}

	e.current = nil
	e.inflight++
	e.wg.Add(1)
	e.mu.Unlock()

	resolution := Resolution{ID: id}
	if current.request.Input != nil {
		resolution.Value = &chosen
	}
	e.bus.Publish(event.New(event.TypeConfirmationConfirmed, resolution))

	go e.run(current, chosen)
	return nil
}

// Cancel closes the open request without running anything.
func (e *Engine) Cancel(id string, owner int64) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	current, err := e.matchLocked(id, owner)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.current = nil
	e.mu.Unlock()

	e.bus.Publish(event.New(event.TypeConfirmationCancelled, Resolution{ID: current.request.ID, Reason: ReasonCancelled}))
	return nil
}

// Reset discards the open request, whoever owns it. It reports whether
// there was one.
func (e *Engine) Reset(reason string) bool {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()

	if current == nil {
		return false
	}

	slog.Info("confirmation discarded", "id", current.request.ID, "reason", reason)
	e.bus.Publish(event.New(event.TypeConfirmationCancelled, Resolution{ID: current.request.ID, Reason: reason}))
	return true
}

// PendingFor is Pending restricted to requests opened by owner.
func (e *Engine) PendingFor(owner int64) (Request, bool) {
	req, ok := e.Pending()
	if !ok || req.OwnerID != owner {
		return Request{}, false
	}
	return req, true
}

func (e *Engine) Pending() (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Request{}, false
	}
	return e.current.request, true
}

// State reports open while a request is shown, resolving while commits are
// running and nothing is shown, idle otherwise.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.current != nil:
		return StateOpen
	case e.inflight > 0:
		return StateResolving
	default:
		return StateIdle
	}
}

// Busy reports whether any commit is still running.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight > 0
}

// Wait blocks until every started commit has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) matchLocked(id string, owner int64) (*pending, error) {
	if e.current == nil || e.current.request.OwnerID != owner {
		return nil, model.ErrNoPendingConfirmation
	}
	if e.current.request.ID != id {
		return nil, model.ErrStaleConfirmation
	}
	return e.current, nil
}

func (e *Engine) run(p *pending, value int) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("confirmation commit panicked",
				"id", p.request.ID,
				"action_type", p.request.ActionType,
				"error", fmt.Sprintf("%v", recovered),
				"stack", string(debug.Stack()),
			)
		}

		e.mu.Lock()
		e.inflight--
		e.mu.Unlock()
		e.wg.Done()
	}()

	if p.commit != nil {
		p.commit(e.base, value)
	}
}
