package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session  string
	Account  string
	View     string
	Chats    int64
	Messages int64
	Dropped  uint64
	Uptime   time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fg := colorName(si.theme.FgColor)
	ct := colorName(si.theme.CounterColor)

	account := data.Account
	if account == "" {
		account = "-"
	}
	line := func(label, value string) string {
		return fmt.Sprintf("[%s::b]%-9s[-:-:-][%s]%s[-]\n", fg, label, ct, value)
	}

	text := line("Session:", data.Session) +
		line("Account:", account) +
		line("View:", data.View) +
		line("Chats:", fmt.Sprint(data.Chats)) +
		line("Msgs:", fmt.Sprint(data.Messages)) +
		line("Uptime:", formatDuration(data.Uptime))
	if data.Dropped > 0 {
		text += fmt.Sprintf("[%s::b]Dropped:[-:-:-] [%s]%d[-]",
			fg, colorName(si.theme.FlashWarnColor), data.Dropped)
	}

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
