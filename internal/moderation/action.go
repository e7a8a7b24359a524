// Package moderation turns admin moderation actions into confirmation
// requests whose commit calls the backend.
package moderation

import (
	"fmt"
	"strings"

	"ride-console/internal/confirm"
	"ride-console/internal/model"
)

const (
	NameDelete   = "delete"
	NameBan      = "ban"
	NameActivate = "activate"
	NameSuspend  = "suspend"
	NameWarn     = "warn"
)

// Forever is the longest suspension on the menu. It is sent to the backend
// as is.
const Forever = 9999

// SuspendOptions is the fixed suspension menu, in days.
var SuspendOptions = []confirm.Option{
	{Value: 1, Label: "1 Day"},
	{Value: 3, Label: "3 Days"},
	{Value: 7, Label: "1 Week"},
	{Value: 30, Label: "1 Month"},
	{Value: Forever, Label: "Forever"},
}

// Action is a moderation action. The set is closed: Delete, Ban, Activate,
// Suspend and Warn are the only implementations.
type Action interface {
	Name() string
	isAction()
}

type Delete struct{}

type Ban struct{}

type Activate struct{}

type Suspend struct {
	Days int
}

type Warn struct{}

func (Delete) Name() string   { return NameDelete }
func (Ban) Name() string      { return NameBan }
func (Activate) Name() string { return NameActivate }
func (Suspend) Name() string  { return NameSuspend }
func (Warn) Name() string     { return NameWarn }

func (Delete) isAction()   {}
func (Ban) isAction()      {}
func (Activate) isAction() {}
func (Suspend) isAction()  {}
func (Warn) isAction()     {}

// ParseAction builds an action from its wire name. duration is only read
// for suspend, where it is required and must be on the menu.
func ParseAction(name string, duration *int) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameDelete:
		return Delete{}, nil
	case NameBan:
		return Ban{}, nil
	case NameActivate:
		return Activate{}, nil
	case NameWarn:
		return Warn{}, nil
	case NameSuspend:
		if duration == nil {
			return nil, fmt.Errorf("%w: suspend requires a duration", model.ErrInvalidDuration)
		}
		if !validDays(*duration) {
			return nil, fmt.Errorf("%w: %d", model.ErrInvalidDuration, *duration)
		}
		return Suspend{Days: *duration}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownAction, name)
	}
}

func validDays(days int) bool {
	for _, option := range SuspendOptions {
		if option.Value == days {
			return true
		}
	}
	return false
}
