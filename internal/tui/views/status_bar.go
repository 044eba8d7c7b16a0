package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the session, the chat view state and search progress.
type StatusBar struct {
	*tview.TextView
	session string
	state   string
	matches string
	flash   string
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, now: time.Now}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState updates the chat view state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetMatches shows the search position; a zero total hides it.
func (sb *StatusBar) SetMatches(current, total int) {
	sb.matches = ""
	if total > 0 {
		sb.matches = fmt.Sprintf("match %d/%d", current, total)
	}
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	parts := []string{fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(sb.session))}
	if sb.state != "" {
		parts = append(parts, sb.state)
	}
	if sb.matches != "" {
		parts = append(parts, "[aqua]"+sb.matches+"[-]")
	}
	parts = append(parts, sb.now().Format("15:04"))
	if sb.flash != "" {
		parts = append(parts, "[yellow]"+tview.Escape(sb.flash)+"[-]")
	}
	return strings.Join(parts, " | ")
}
