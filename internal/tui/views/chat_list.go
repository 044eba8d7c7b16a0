package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/store"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatList is the main chat list view.
type ChatList struct {
	*tview.Table
	theme   *ui.Theme
	chats   []store.Chat
	visible []int // indexes into chats, in table order
	filter  string
}

// NewChatList creates a new chat list table.
func NewChatList(theme *ui.Theme) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &ChatList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ChatList) Name() string { return "Chats" }

// Hints implements Component.
func (cl *ChatList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Open Nth", Numeric: true},
	}
}

// Update replaces the listed chats, keeping the selection on the same chat
// when it is still listed.
func (cl *ChatList) Update(chats []store.Chat) {
	selected, _ := cl.SelectedChat()
	cl.chats = chats
	cl.render()
	if selected.JID != "" {
		cl.selectJID(selected.JID)
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ChatList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter.
func (cl *ChatList) Filter() string { return cl.filter }

func (cl *ChatList) matches(c *store.Chat) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	return strings.Contains(strings.ToLower(c.Name), f) ||
		strings.Contains(strings.ToLower(c.JID), f) ||
		strings.Contains(strings.ToLower(c.LastMessagePreview), f)
}

func (cl *ChatList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	for i := range cl.chats {
		chat := &cl.chats[i]
		if !cl.matches(chat) {
			continue
		}
		cl.visible = append(cl.visible, i)
		row := len(cl.visible)

		name := chat.Name
		if name == "" {
			name = chat.JID
		}
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", chat.UnreadCount, name)
		}

		fg := cl.theme.FgColor
		chatType := "DM"
		switch {
		case chat.ContactRequest:
			chatType = "REQUEST"
			fg = cl.theme.RequestColor
		case chat.IsGroup:
			chatType = "GROUP"
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(chat.LastMessagePreview))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(chat.LastMessageAt)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(chatType).SetTextColor(fg).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Chats (%d/%d) filter: %s ", len(cl.visible), len(cl.chats), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Chats (%d) ", len(cl.chats)))
	}
}

// SelectedChat returns the chat under the cursor.
func (cl *ChatList) SelectedChat() (store.Chat, bool) {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the Nth visible chat (1-based).
func (cl *ChatList) ChatByIndex(n int) (store.Chat, bool) {
	if n < 1 || n > len(cl.visible) {
		return store.Chat{}, false
	}
	return cl.chats[cl.visible[n-1]], true
}

// FindChat returns the first visible chat whose name or JID contains name.
func (cl *ChatList) FindChat(name string) (store.Chat, bool) {
	q := strings.ToLower(name)
	for _, i := range cl.visible {
		c := cl.chats[i]
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.JID), q) {
			return c, true
		}
	}
	return store.Chat{}, false
}

func (cl *ChatList) selectJID(jid string) {
	for n, i := range cl.visible {
		if cl.chats[i].JID == jid {
			cl.Select(n+1, 0)
			return
		}
	}
}
