package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/draft"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input for the open chat's draft. Every edit is
// reported through the change callback; Enter sends.
type Composer struct {
	*tview.InputField
	theme    *ui.Theme
	onSend   func(text string)
	onChange func(text string)
	onLeave  func()
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Compose (i to focus) ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input, theme: theme}

	input.SetChangedFunc(func(text string) {
		if c.onChange != nil {
			c.onChange(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if c.onSend != nil {
				c.onSend(c.GetText())
			}
		case tcell.KeyEscape:
			if c.onLeave != nil {
				c.onLeave()
			}
		}
	})

	return c
}

// SetOnSend sets the callback when Enter is pressed.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnChange sets the callback for every text edit.
func (c *Composer) SetOnChange(fn func(text string)) {
	c.onChange = fn
}

// SetOnLeave sets the callback when Esc leaves the composer.
func (c *Composer) SetOnLeave(fn func()) {
	c.onLeave = fn
}

// ShowDraft shows d's text and shape without reporting an edit.
func (c *Composer) ShowDraft(d *domain.Draft) {
	fn := c.onChange
	c.onChange = nil
	text := ""
	if d != nil {
		text = d.Text
	}
	c.SetText(text)
	c.onChange = fn
	c.ShowStatus(draft.StatusOf(d), d)
}

// ShowStatus renders the draft shape in the label.
func (c *Composer) ShowStatus(st draft.Status, d *domain.Draft) {
	c.SetLabel(draftLabel(st, d))
}

func draftLabel(st draft.Status, d *domain.Draft) string {
	label := " "
	if st.WithQuote {
		label += "[quote] "
	}
	if d != nil && d.Attachment != nil {
		label += fmt.Sprintf("[%s] ", d.Attachment.Kind)
	}
	return label + "> "
}
