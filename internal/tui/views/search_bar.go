package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/rivo/tview"
)

// SearchBar is the in-chat search input. The query is applied on every
// edit; the match counter is shown on the right.
type SearchBar struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	counter *tview.TextView
	onQuery func(query string)
	onDone  func()
}

// NewSearchBar creates a new search bar.
func NewSearchBar(theme *ui.Theme) *SearchBar {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	counter := tview.NewTextView().
		SetTextAlign(tview.AlignRight).
		SetTextColor(theme.CounterColor)
	counter.SetBackgroundColor(theme.BgColor)

	flex := tview.NewFlex().
		AddItem(input, 0, 1, true).
		AddItem(counter, 12, 0, false)

	sb := &SearchBar{
		Flex:    flex,
		theme:   theme,
		input:   input,
		counter: counter,
	}

	input.SetChangedFunc(func(text string) {
		if sb.onQuery != nil {
			sb.onQuery(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			input.SetText("")
		}
		if sb.onDone != nil {
			sb.onDone()
		}
	})

	return sb
}

// SetOnQuery sets the callback for query edits.
func (sb *SearchBar) SetOnQuery(fn func(query string)) {
	sb.onQuery = fn
}

// SetOnDone sets the callback when Enter or Esc leaves the bar. Esc also
// clears the query.
func (sb *SearchBar) SetOnDone(fn func()) {
	sb.onDone = fn
}

// Input returns the query field, for focus management.
func (sb *SearchBar) Input() *tview.InputField {
	return sb.input
}

// Clear resets the query without reporting it.
func (sb *SearchBar) Clear() {
	fn := sb.onQuery
	sb.onQuery = nil
	sb.input.SetText("")
	sb.onQuery = fn
	sb.SetMatches(0, 0)
}

// SetMatches renders the match counter.
func (sb *SearchBar) SetMatches(current, total int) {
	sb.counter.SetText(matchLabel(sb.input.GetText(), current, total))
}

func matchLabel(query string, current, total int) string {
	switch {
	case query == "":
		return ""
	case total == 0:
		return "no matches "
	default:
		return fmt.Sprintf("%d/%d ", current, total)
	}
}
