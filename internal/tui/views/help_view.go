package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	_, _ = fmt.Fprint(hv, hv.text())
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpSection struct {
	title string
	keys  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"?", "Help"},
		{"Esc", "Cancel / Go back"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Chat List", [][2]string{
		{"Enter", "Open chat"},
		{"/", "Filter chats"},
		{"1-9", "Open Nth chat"},
		{"q", "Quit"},
	}},
	{"Chat", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send draft (in composer)"},
		{"/", "Search this chat"},
		{"n / N", "Older / newer match"},
		{"g / G", "First / last match"},
		{"j / k", "Move down / up"},
	}},
	{"Commands (: mode)", [][2]string{
		{":attach <kind> <path>", "Attach image, audio, voice or file"},
		{":detach", "Remove the attachment"},
		{":quote", "Quote the selected message"},
		{":unquote", "Remove the quote"},
		{":jumpquote", "Jump to the message quoted by the selection"},
		{":delete", "Delete the selected message"},
		{":accept", "Accept a contact request"},
		{":chat <name>", "Open chat by name"},
		{":quit / :q", "Quit application"},
	}},
}

func (hv *HelpView) text() string {
	kc := colorTag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  [%s]%-24s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	return b.String()
}
