package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/search"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
	"github.com/matheus3301/chatline/internal/tui/keys"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/matheus3301/chatline/internal/tui/views"
	"github.com/matheus3301/chatline/internal/viewmodel"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageChats = "chats"
	pageChat  = "chat"
	pageHelp  = "help"

	chatListLimit  = 500
	refreshPeriod  = time.Second
	headerHeight   = 7
	sessionWidth   = 34
	promptHeight   = 3
	composerHeight = 3
)

// Deps are the collaborators of the TUI.
type Deps struct {
	Session string
	Account string
	DB      *store.DB
	Bus     *bus.Bus
	View    *viewmodel.ChatView
	Logger  *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	registry *keys.Registry
	flash    *ui.FlashModel

	root        *tview.Flex
	chatPage    *tview.Flex
	sessionInfo *ui.SessionInfo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	prompt      *ui.Prompt
	flashBar    *ui.FlashBar
	statusBar   *views.StatusBar
	chatList    *views.ChatList
	thread      *views.Thread
	composer    *views.Composer
	searchBar   *views.SearchBar
	help        *views.HelpView

	deps    Deps
	view    *viewmodel.ChatView
	logger  *zap.Logger
	state   string
	started time.Time
	dirty   chan struct{}

	// Header counters, owned by the refresh goroutine.
	chatCount int64
	msgCount  int64
}

// NewApp creates the TUI application.
func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	theme := ui.DefaultTheme()
	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		pages:       ui.NewPages(),
		registry:    keys.NewRegistry(),
		flash:       ui.NewFlashModel(),
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme, headerHeight-1),
		prompt:      ui.NewPrompt(theme),
		flashBar:    ui.NewFlashBar(theme),
		statusBar:   views.NewStatusBar(),
		chatList:    views.NewChatList(theme),
		thread:      views.NewThread(theme, d.View),
		composer:    views.NewComposer(theme),
		searchBar:   views.NewSearchBar(theme),
		help:        views.NewHelpView(theme),
		deps:        d,
		view:        d.View,
		logger:      d.Logger.Named("tui"),
		state:       string(status.Closed),
		started:     time.Now(),
		dirty:       make(chan struct{}, 1),
	}
	a.crumbs = ui.NewCrumbs(theme, a.pageTitle)

	a.view.SetListener(a.thread)
	a.statusBar.SetSession(d.Session)
	a.statusBar.SetState(a.state)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) pageTitle(page string) string {
	switch page {
	case pageChat:
		return a.thread.Name()
	case pageHelp:
		return a.help.Name()
	default:
		return a.chatList.Name()
	}
}

func (a *App) component(page string) ui.Component {
	switch page {
	case pageChat:
		return a.thread
	case pageHelp:
		return a.help
	default:
		return a.chatList
	}
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Name: "command", Key: tcell.KeyRune, Rune: ':',
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "help", Key: tcell.KeyRune, Rune: '?',
		Handler: a.showHelp,
	})

	a.registry.AddView(pageChats, &keys.Action{
		Name: "quit", Key: tcell.KeyRune, Rune: 'q',
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView(pageChats, &keys.Action{
		Name: "filter", Key: tcell.KeyRune, Rune: '/',
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageChats, &keys.Action{
		Name: "clear", Key: tcell.KeyEscape,
		Handler: func() { a.chatList.SetFilter("") },
	})
	for n := '1'; n <= '9'; n++ {
		idx := int(n - '0')
		a.registry.AddView(pageChats, &keys.Action{
			Name: "open" + string(n), Key: tcell.KeyRune, Rune: n,
			Handler: func() {
				if c, ok := a.chatList.ChatByIndex(idx); ok {
					a.openChat(c)
				}
			},
		})
	}

	a.registry.AddView(pageChat, &keys.Action{
		Name: "back", Key: tcell.KeyEscape,
		Handler: a.closeChat,
	})
	a.registry.AddView(pageChat, &keys.Action{
		Name: "compose", Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Name: "search", Key: tcell.KeyRune, Rune: '/',
		Handler: a.showSearch,
	})
	jumps := []struct {
		name string
		r    rune
		pos  search.Position
	}{
		{"next", 'n', search.Next},
		{"previous", 'N', search.Previous},
		{"first", 'g', search.First},
		{"last", 'G', search.Last},
	}
	for _, j := range jumps {
		a.registry.AddView(pageChat, &keys.Action{
			Name: j.name, Key: tcell.KeyRune, Rune: j.r,
			Handler: func() { a.view.JumpToPosition(j.pos) },
		})
	}

	a.registry.AddView(pageHelp, &keys.Action{
		Name: "back", Key: tcell.KeyEscape,
		Handler: func() {
			a.pages.Pop()
			a.focusPage()
		},
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, _ int) {
		if c, ok := a.chatList.ChatByIndex(row); ok {
			a.openChat(c)
		}
	})

	a.composer.SetOnChange(func(text string) {
		a.view.SetDraftText(text)
	})
	a.composer.SetOnSend(a.send)
	a.composer.SetOnLeave(func() {
		if err := a.view.FlushDraft(); err != nil {
			a.flash.Err(err)
		}
		a.app.SetFocus(a.thread)
	})

	a.searchBar.SetOnQuery(func(q string) {
		if err := a.view.SetQuery(q); err != nil {
			a.flash.Err(err)
		}
	})
	a.searchBar.SetOnDone(func() {
		if a.view.Query() == "" {
			a.chatPage.ResizeItem(a.searchBar, 0, 0)
		}
		a.app.SetFocus(a.thread)
	})
	a.thread.SetOnMatchCount(func(current, total int) {
		a.searchBar.SetMatches(current, total)
		a.statusBar.SetMatches(current, total)
	})

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.chatList.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.chatList.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.component(a.pages.Current()).Hints())
	})
}

func (a *App) setupLayout() {
	a.chatPage = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.searchBar, 0, 0, false).
		AddItem(a.thread, 0, 1, true).
		AddItem(a.composer, composerHeight, 0, false)

	a.pages.AddPage(pageChats, a.chatList, true, false)
	a.pages.AddPage(pageChat, a.chatPage, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.sessionInfo, sessionWidth, 0, false).
		AddItem(a.menu, 0, 1, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageChats)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) showSearch() {
	a.chatPage.ResizeItem(a.searchBar, 1, 0)
	a.app.SetFocus(a.searchBar.Input())
}

func (a *App) showHelp() {
	a.pages.Push(pageHelp)
	a.app.SetFocus(a.help)
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageChat:
		a.app.SetFocus(a.thread)
	case pageHelp:
		a.app.SetFocus(a.help)
	default:
		a.app.SetFocus(a.chatList)
	}
}

func (a *App) openChat(c store.Chat) {
	key := domain.ChatKey{Account: a.deps.Account, Chat: c.JID}
	if err := a.view.Open(key, c.ContactRequest); err != nil {
		a.logger.Warn("failed to open chat", zap.String("chat", c.JID), zap.Error(err))
		a.flash.Err(err)
		return
	}
	name := c.Name
	if name == "" {
		name = c.JID
	}
	a.searchBar.Clear()
	a.chatPage.ResizeItem(a.searchBar, 0, 0)
	a.statusBar.SetMatches(0, 0)
	a.thread.SetChat(name, c.ContactRequest)
	a.composer.ShowDraft(a.view.Draft())
	a.view.Ready()

	a.pages.PopTo(pageChats)
	a.pages.Push(pageChat)
	a.app.SetFocus(a.thread)
}

func (a *App) closeChat() {
	if err := a.view.Close(); err != nil {
		a.flash.Err(err)
	}
	a.composer.ShowDraft(nil)
	a.statusBar.SetMatches(0, 0)
	a.pages.PopTo(pageChats)
	a.app.SetFocus(a.chatList)
	a.markDirty()
}

func (a *App) send(text string) {
	id, err := a.view.Send(text)
	if err != nil {
		a.logger.Warn("send failed", zap.Error(err))
		a.flash.Err(err)
		return
	}
	a.composer.ShowDraft(a.view.Draft())
	if id != "" {
		a.logger.Debug("message queued", zap.String("client_msg_id", id))
	}
}

func (a *App) runCommand(cmd Command) {
	var err error
	switch cmd.Name {
	case "q", "quit":
		a.app.Stop()
		return
	case "h", "help":
		a.showHelp()
	case "chat":
		c, ok := a.chatList.FindChat(cmd.Args)
		if !ok {
			a.flash.Warn(fmt.Sprintf("no chat matches %q", cmd.Args))
			return
		}
		a.openChat(c)
	case "attach":
		err = a.attach(cmd.Args)
	case "detach":
		err = a.view.SetAttachment(nil)
	case "quote":
		err = a.view.QuoteRow(a.thread.SelectedRow())
	case "unquote":
		err = a.view.Unquote()
	case "delete":
		if err = a.view.DeleteMessage(a.thread.SelectedRow()); err == nil {
			a.markDirty()
		}
	case "accept":
		if err = a.view.AcceptContactRequest(); err == nil {
			a.thread.SetChat(a.thread.Name(), false)
			a.markDirty()
		}
	case "jumpquote":
		if !a.view.JumpToQuoted(a.thread.SelectedRow()) {
			a.flash.Warn("quoted message is not in this chat")
		}
	default:
		a.flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
		return
	}
	if err != nil {
		a.flash.Err(err)
	}
	a.composer.ShowStatus(a.view.DraftStatus(), a.view.Draft())
}

func (a *App) attach(args string) error {
	att, err := ParseAttachment(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(att.Path); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	return a.view.SetAttachment(att)
}

func (a *App) markDirty() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

// refreshChats reloads the chat list and the session counters off the UI
// goroutine.
func (a *App) refreshChats() {
	db := a.deps.DB
	chats, err := db.ListChats(chatListLimit, 0)
	if err != nil {
		a.logger.Warn("failed to list chats", zap.Error(err))
		a.flash.Err(err)
		return
	}
	data := a.sessionData(db)
	a.app.QueueUpdateDraw(func() {
		a.chatList.Update(chats)
		data.View = a.state
		a.sessionInfo.Update(data)
	})
}

type counter interface {
	ChatCount() (int64, error)
	MessageCount() (int64, error)
}

// sessionData snapshots the header counters. A count that fails keeps its
// last known value.
func (a *App) sessionData(c counter) *ui.SessionData {
	if n, err := c.ChatCount(); err != nil {
		a.logger.Warn("failed to count chats", zap.Error(err))
	} else {
		a.chatCount = n
	}
	if n, err := c.MessageCount(); err != nil {
		a.logger.Warn("failed to count messages", zap.Error(err))
	} else {
		a.msgCount = n
	}
	return &ui.SessionData{
		Session:  a.deps.Session,
		Account:  a.deps.Account,
		Chats:    a.chatCount,
		Messages: a.msgCount,
		Dropped:  a.deps.Bus.Dropped(),
		Uptime:   time.Since(a.started),
	}
}

// watchEvents follows the bus for chat list changes and view state, and
// refreshes transient widgets once per period.
func (a *App) watchEvents(ctx context.Context) {
	changes, unsubChanges := a.deps.Bus.Subscribe("message.", 64)
	defer unsubChanges()
	syncs, unsubSyncs := a.deps.Bus.Subscribe("sync.", 16)
	defer unsubSyncs()
	states, unsubStates := a.deps.Bus.Subscribe("view.", 16)
	defer unsubStates()

	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()

	dirty := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			dirty = true
		case <-syncs:
			dirty = true
		case <-a.dirty:
			dirty = true
		case evt := <-states:
			if vc, ok := evt.Payload.(status.ViewChange); ok {
				a.app.QueueUpdateDraw(func() {
					a.state = string(vc.To)
					a.statusBar.SetState(a.state)
				})
			}
		case <-ticker.C:
			if dirty {
				dirty = false
				a.refreshChats()
			}
			a.app.QueueUpdateDraw(func() {
				msg := a.flash.Current()
				a.flashBar.Update(msg)
				if msg == nil {
					a.statusBar.SetFlash("")
				} else {
					a.statusBar.SetFlash(msg.Text)
				}
			})
		}
	}
}

// Run starts the TUI and blocks until it exits. The open chat's draft is
// flushed on the way out.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.view.Watch(ctx, a.deps.Bus, viewmodel.DispatcherFunc(func(f func()) {
		a.app.QueueUpdateDraw(f)
	}))
	go a.watchEvents(ctx)
	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()

	err := a.app.Run()
	if cerr := a.view.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.app.Stop()
}
