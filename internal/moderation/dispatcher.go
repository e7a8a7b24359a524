package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ride-console/internal/confirm"
	"ride-console/internal/model"
)

type Backend interface {
	ChangeUserStatus(ctx context.Context, userID int64, change model.StatusChange) error
	DeleteUser(ctx context.Context, userID int64) error
	WarnUser(ctx context.Context, userID int64) error
	ResolveReport(ctx context.Context, reportID int64) error
}

type Opener interface {
	Open(req confirm.Request, commit confirm.CommitFunc) confirm.Request
}

// Log records committed actions. A nil Log disables recording.
type Log interface {
	Record(ctx context.Context, entry model.ModerationEntry) error
}

type ActorSource interface {
	Snapshot() model.SessionSnapshot
}

// RefreshFunc is called after a successful commit so the caller can reload
// its data. It may run after the page that asked for it is gone, so it must
// not assume anything about the caller still being there.
type RefreshFunc func(ctx context.Context)

type UserTarget struct {
	ID int64
}

// ReportTarget is a user reached through a report. Acting on it also
// resolves the report.
type ReportTarget struct {
	ReportID int64
	UserID   int64
}

type Dispatcher struct {
	backend  Backend
	opener   Opener
	notifier Notifier
	log      Log
	actor    ActorSource
}

func NewDispatcher(backend Backend, opener Opener, notifier Notifier, log Log, actor ActorSource) *Dispatcher {
	return &Dispatcher{
		backend:  backend,
		opener:   opener,
		notifier: notifier,
		log:      log,
		actor:    actor,
	}
}

type prompt struct {
	title       string
	message     string
	confirmText string
	input       *confirm.Input
	done        string
	failed      string
}

func describe(action Action) (prompt, error) {
	switch a := action.(type) {
	case Delete:
		return prompt{
			title:       "Delete user",
			message:     "Are you sure you want to delete this user?",
			confirmText: "Delete",
			done:        "User deleted",
			failed:      "Failed to delete user",
		}, nil
	case Ban:
		return prompt{
			title:       "Ban user",
			message:     "Are you sure you want to ban this user?",
			confirmText: "Ban",
			done:        "User banned",
			failed:      "Failed to ban user",
		}, nil
	case Activate:
		return prompt{
			title:       "Activate user",
			message:     "Are you sure you want to activate this user?",
			confirmText: "Activate",
			done:        "User activated",
			failed:      "Failed to activate user",
		}, nil
	case Suspend:
		if !validDays(a.Days) {
			return prompt{}, fmt.Errorf("%w: %d", model.ErrInvalidDuration, a.Days)
		}
		return prompt{
			title:       "Suspend user",
			message:     "Are you sure you want to suspend this user?",
			confirmText: "Suspend",
			input: &confirm.Input{
				Label:   "Suspension length",
				Options: SuspendOptions,
				Default: a.Days,
			},
			done:   "User suspended",
			failed: "Failed to suspend user",
		}, nil
	case Warn:
		return prompt{
			title:       "Warn user",
			message:     "Are you sure you want to send a warning to this user?",
			confirmText: "Send Warning",
			done:        "User warned",
			failed:      "Failed to warn user",
		}, nil
	default:
		return prompt{}, fmt.Errorf("%w: %T", model.ErrUnknownAction, action)
	}
}

// Dispatch opens the confirmation for action on target. Nothing reaches the
// backend until the request is confirmed. Commit failures are reported
// through the notifier, never returned.
func (d *Dispatcher) Dispatch(target UserTarget, action Action, refresh RefreshFunc) (confirm.Request, error) {
	if target.ID <= 0 {
		return confirm.Request{}, model.ErrInvalidTarget
	}

	p, err := describe(action)
	if err != nil {
		return confirm.Request{}, err
	}
	actor := d.currentActor()

	commit := func(ctx context.Context, value int) {
		started := time.Now()
		err := d.apply(ctx, target.ID, action, value)
		d.finish(ctx, actor, action, value, target.ID, nil, started, err)

		if err != nil {
			d.notifier.Error(p.failed, err)
			return
		}

		d.notifier.Success(p.done)
		if refresh != nil {
			refresh(ctx)
		}
	}

	return d.open(actor, action, p, commit), nil
}

// DispatchForReport is Dispatch from a report screen: after the user action
// succeeds the report is resolved, and done runs only if both succeed.
// Warn also re-activates the user.
func (d *Dispatcher) DispatchForReport(target ReportTarget, action Action, done RefreshFunc) (confirm.Request, error) {
	if target.ReportID <= 0 || target.UserID <= 0 {
		return confirm.Request{}, model.ErrInvalidTarget
	}

	p, err := describe(action)
	if err != nil {
		return confirm.Request{}, err
	}

	actor := d.currentActor()
	failed := p.failed
	if _, ok := action.(Warn); ok {
		failed = "Failed to warn or activate user"
	}
	reportID := target.ReportID

	commit := func(ctx context.Context, value int) {
		started := time.Now()
		err := d.apply(ctx, target.UserID, action, value)
		if err == nil {
			if _, ok := action.(Warn); ok {
				err = d.backend.ChangeUserStatus(ctx, target.UserID, model.NewStatusChange(model.StatusActive))
			}
		}
		d.finish(ctx, actor, action, value, target.UserID, &reportID, started, err)

		if err != nil {
			d.notifier.Error(failed, err)
			return
		}

		if err := d.backend.ResolveReport(ctx, target.ReportID); err != nil {
			d.notifier.Error("Failed to resolve report", err)
			return
		}

		d.notifier.Success(reportDone(action))
		if done != nil {
			done(ctx)
		}
	}

	return d.open(actor, action, p, commit), nil
}

func reportDone(action Action) string {
	switch action.(type) {
	case Delete:
		return "User deleted and report resolved"
	case Ban:
		return "User banned and report resolved"
	case Activate:
		return "User activated and report resolved"
	case Suspend:
		return "User suspended and report resolved"
	case Warn:
		return "User warned, activated, and report resolved"
	default:
		return "Report resolved"
	}
}

// currentActor is the operator dispatching the action. Commits are logged
// against this user even if the session changes before they run.
func (d *Dispatcher) currentActor() model.User {
	if d.actor == nil {
		return model.User{}
	}
	if snap := d.actor.Snapshot(); snap.User != nil {
		return *snap.User
	}
	return model.User{}
}

func (d *Dispatcher) open(actor model.User, action Action, p prompt, commit confirm.CommitFunc) confirm.Request {
	confirmationsOpened.WithLabelValues(action.Name()).Inc()

	return d.opener.Open(confirm.Request{
		Title:       p.title,
		Message:     p.message,
		ActionType:  action.Name(),
		ConfirmText: p.confirmText,
		Input:       p.input,
		OwnerID:     actor.ID,
	}, commit)
}

func (d *Dispatcher) apply(ctx context.Context, userID int64, action Action, value int) error {
	switch action.(type) {
	case Delete:
		return d.backend.DeleteUser(ctx, userID)
	case Ban:
		return d.backend.ChangeUserStatus(ctx, userID, model.NewStatusChange(model.StatusBanned))
	case Activate:
		return d.backend.ChangeUserStatus(ctx, userID, model.NewStatusChange(model.StatusActive))
	case Suspend:
		return d.backend.ChangeUserStatus(ctx, userID, model.NewStatusChange(model.StatusSuspended).WithDuration(value))
	case Warn:
		return d.backend.WarnUser(ctx, userID)
	default:
		return fmt.Errorf("%w: %T", model.ErrUnknownAction, action)
	}
}

func (d *Dispatcher) finish(ctx context.Context, actor model.User, action Action, value int, userID int64, reportID *int64, started time.Time, err error) {
	outcome := model.OutcomeSuccess
	if err != nil {
		outcome = model.OutcomeFailure
	}
	actionsTotal.WithLabelValues(action.Name(), outcome).Inc()
	actionDuration.WithLabelValues(action.Name()).Observe(time.Since(started).Seconds())

	if d.log == nil {
		return
	}

	entry := model.ModerationEntry{
		ID:           uuid.NewString(),
		Action:       action.Name(),
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		TargetUserID: userID,
		ReportID:     reportID,
		Outcome:      outcome,
		OccurredAt:   time.Now().UTC(),
	}
	if _, ok := action.(Suspend); ok {
		days := value
		entry.Duration = &days
	}
	if err != nil {
		entry.Error = err.Error()
	}

	if err := d.log.Record(ctx, entry); err != nil {
		slog.Error("failed to record moderation entry", "action", entry.Action, "target_user_id", userID, "error", err)
	}
}
