package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/matheus3301/chatline/internal/viewmodel"
	"github.com/rivo/tview"
)

// RowSource is the part of the chat view model the thread renders from.
type RowSource interface {
	RowCount() int
	IsSeparator(row int) bool
	Detail(row int) (*domain.Message, bool, error)
	IsSearchMatch(row int) bool
	SameSenderAsNext(row int) bool
	UnreadCount() int
}

var _ viewmodel.Listener = (*Thread)(nil)

// Thread shows the open chat oldest at the top and newest at the bottom.
// Model row 0 is the newest message, so it lives in the last table row.
//
// Thread applies the model's row operations one by one instead of
// redrawing the whole table.
type Thread struct {
	*tview.Table
	theme   *ui.Theme
	src     RowSource
	name    string
	request bool

	onMatchCount func(current, total int)
}

// NewThread creates an empty thread table reading rows from src.
func NewThread(theme *ui.Theme, src RowSource) *Thread {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	t := &Thread{
		Table: table,
		theme: theme,
		src:   src,
	}
	t.updateTitle()
	return t
}

// Name implements Component.
func (t *Thread) Name() string {
	if t.name != "" {
		return t.name
	}
	return "Messages"
}

// Hints implements Component.
func (t *Thread) Hints() []ui.MenuHint {
	hints := []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "/", Description: "Search"},
		{Key: "n/N", Description: "Older/Newer"},
		{Key: "g/G", Description: "First/Last"},
		{Key: ":", Description: "Command"},
		{Key: "Esc", Description: "Back"},
	}
	if t.request {
		hints = append(hints, ui.MenuHint{Key: ":accept", Description: "Accept"})
	}
	return hints
}

// SetChat updates the title for the chat being shown.
func (t *Thread) SetChat(name string, contactRequest bool) {
	t.name = name
	t.request = contactRequest
	t.updateTitle()
}

// SetOnMatchCount sets the callback for search match count changes.
func (t *Thread) SetOnMatchCount(fn func(current, total int)) {
	t.onMatchCount = fn
}

func (t *Thread) updateTitle() {
	title := fmt.Sprintf(" %s ", tview.Escape(t.Name()))
	if t.request {
		title += fmt.Sprintf("[%s::b]contact request[-:-:-] ", colorTag(t.theme.RequestColor))
	}
	t.SetTitle(title)
}

// tableRow maps a model row to a table row.
func (t *Thread) tableRow(row int) int {
	return t.GetRowCount() - 1 - row
}

// SelectedRow returns the model row under the cursor, or -1.
func (t *Thread) SelectedRow() int {
	if t.GetRowCount() == 0 {
		return -1
	}
	sel, _ := t.GetSelection()
	return t.GetRowCount() - 1 - sel
}

// atNewest reports whether the cursor sits on the newest row.
func (t *Thread) atNewest() bool {
	n := t.GetRowCount()
	sel, _ := t.GetSelection()
	return n == 0 || sel >= n-1
}

func (t *Thread) selectNewest() {
	if n := t.GetRowCount(); n > 0 {
		t.Select(n-1, 0)
		t.ScrollToEnd()
	}
}

// place puts the cell for model row at table row at, inserting a table row
// unless at is past the end.
func (t *Thread) place(at, row int) {
	if at < t.GetRowCount() {
		t.InsertRow(at)
	}
	t.SetCell(at, 0, t.cell(row))
}

// RowsInserted implements viewmodel.Listener.
func (t *Thread) RowsInserted(index, count int) {
	follow := t.atNewest()
	for k := range count {
		t.place(t.GetRowCount()-index-k, index+k)
	}
	if follow {
		t.selectNewest()
	}
}

// RowsRemoved implements viewmodel.Listener.
func (t *Thread) RowsRemoved(index, count int) {
	at := t.GetRowCount() - index - count
	for range count {
		t.RemoveRow(at)
	}
}

// RowsMoved implements viewmodel.Listener.
func (t *Thread) RowsMoved(from, to int) {
	n := t.GetRowCount()
	t.RemoveRow(n - 1 - from)
	t.place(n-1-to, to)
}

// RowChanged implements viewmodel.Listener.
func (t *Thread) RowChanged(row int) {
	if at := t.tableRow(row); at >= 0 && row >= 0 {
		t.SetCell(at, 0, t.cell(row))
	}
}

// Reset implements viewmodel.Listener.
func (t *Thread) Reset() {
	t.Clear()
	n := t.src.RowCount()
	for row := range n {
		t.SetCell(n-1-row, 0, t.cell(row))
	}
	t.selectNewest()
}

// MatchCountChanged implements viewmodel.Listener.
func (t *Thread) MatchCountChanged(current, total int) {
	if t.onMatchCount != nil {
		t.onMatchCount(current, total)
	}
}

// RequestJump implements viewmodel.Listener.
func (t *Thread) RequestJump(row int) {
	if at := t.tableRow(row); at >= 0 && row >= 0 {
		t.Select(at, 0)
	}
}

// cell renders model row.
func (t *Thread) cell(row int) *tview.TableCell {
	if t.src.IsSeparator(row) {
		label := "new messages"
		if n := t.src.UnreadCount(); n > 0 {
			label = fmt.Sprintf("%d new messages", n)
		}
		return tview.NewTableCell(fmt.Sprintf("──── %s ────", label)).
			SetAlign(tview.AlignCenter).
			SetExpansion(1).
			SetSelectable(false).
			SetTextColor(t.theme.SeparatorColor)
	}

	m, ok, err := t.src.Detail(row)
	if err != nil || !ok {
		return tview.NewTableCell(" (message unavailable)").
			SetExpansion(1).
			SetTextColor(t.theme.InfoColor)
	}

	cell := tview.NewTableCell(tview.Escape(t.line(row, m))).SetExpansion(1)
	switch {
	case t.src.IsSearchMatch(row):
		cell.SetTextColor(t.theme.MatchFg).SetBackgroundColor(t.theme.MatchBg)
	case m.MessageType == "info":
		cell.SetTextColor(t.theme.InfoColor).SetAttributes(tcell.AttrItalic)
	case m.FromMe && m.State == domain.StateFailed:
		cell.SetTextColor(t.theme.FailedColor)
	case m.FromMe:
		cell.SetTextColor(t.theme.OwnColor)
	default:
		cell.SetTextColor(t.theme.FgColor)
	}
	return cell
}

// line formats one message. The sender is only shown on the first row of a
// run of messages from the same sender.
func (t *Thread) line(row int, m *domain.Message) string {
	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(formatClock(m.Timestamp))
	b.WriteString(" ")

	if m.MessageType != "info" {
		sender := senderName(m)
		if t.src.SameSenderAsNext(row + 1) {
			sender = strings.Repeat(" ", len([]rune(sender)))
		}
		b.WriteString(sanitizeForTerminal(sender))
		b.WriteString(": ")
	}
	if m.QuoteID != 0 {
		b.WriteString("↪ ")
	}
	if m.MessageType != "" && m.MessageType != "text" && m.MessageType != "info" {
		fmt.Fprintf(&b, "<%s> ", m.MessageType)
	}
	b.WriteString(sanitizeForTerminal(m.Body))
	if m.FromMe {
		b.WriteString(" ")
		b.WriteString(stateMark(m.State))
	}
	return b.String()
}

func senderName(m *domain.Message) string {
	switch {
	case m.FromMe:
		return "You"
	case m.SenderName != "":
		return m.SenderName
	default:
		return m.SenderJID
	}
}

func stateMark(state string) string {
	switch state {
	case domain.StateSending:
		return "…"
	case domain.StateSent:
		return "✓"
	case domain.StateSeen:
		return "✓✓"
	case domain.StateFailed:
		return "✗"
	default:
		return ""
	}
}
