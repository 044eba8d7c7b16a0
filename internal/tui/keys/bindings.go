package keys

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// Action represents a keybinding action.
type Action struct {
	Name    string
	Key     tcell.Key
	Rune    rune
	Label   string // key as shown in hints, defaults to the rune
	Hint    string
	Handler func()
	Visible bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

func (a *Action) label() string {
	if a.Label != "" {
		return a.Label
	}
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return tcell.KeyNames[a.Key]
}

// Registry holds keybindings organized by scope, in registration order.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		views: make(map[string][]*Action),
	}
}

// AddGlobal registers a global keybinding. A binding with the same name is
// replaced.
func (r *Registry) AddGlobal(action *Action) {
	r.global = put(r.global, action)
}

// AddView registers a view-specific keybinding. A binding with the same
// name is replaced.
func (r *Registry) AddView(view string, action *Action) {
	r.views[view] = put(r.views[view], action)
}

func put(list []*Action, action *Action) []*Action {
	for i, a := range list {
		if a.Name == action.Name {
			list[i] = action
			return list
		}
	}
	return append(list, action)
}

// Hints returns the visible bindings of view followed by the global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, list := range [][]*Action{r.views[view], r.global} {
		for _, a := range list {
			if a.Visible {
				hints = append(hints, ui.MenuHint{Key: a.label(), Description: a.Hint})
			}
		}
	}
	return hints
}

// HandleEvent dispatches a key event to matching action in the given view.
// Returns true if a handler matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	// Check view-specific bindings first.
	for _, a := range r.views[view] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
