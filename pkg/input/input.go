// Package input defines controller events and the handler contract widgets
// implement to receive them.
package input

import "pidrive/pkg/action"

// Event is a physical controller event.
type Event int

const (
	EventUp Event = iota
	EventDown
	EventSelect
)

// Handler translates events and dispatched actions into behavior. Both
// methods report whether the event/action was consumed plus any follow-on
// actions to dispatch. Unrecognized input must be reported unhandled so a
// broadcast can continue to other widgets.
type Handler interface {
	OnEvent(ev Event) (handled bool, followups []action.Action, err error)
	DoAction(act action.Action) (handled bool, followups []action.Action, err error)
}
