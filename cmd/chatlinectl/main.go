package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/session"
	"github.com/matheus3301/chatline/internal/store"
	intsync "github.com/matheus3301/chatline/internal/sync"
	"go.uber.org/zap"
)

// ctl is the state shared by every subcommand.
type ctl struct {
	db      *store.DB
	engine  *intsync.Engine
	cfg     *config.Config
	logger  *zap.Logger
	jsonOut bool
}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fatalf("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fatalf("config: %v", err)
	}
	logger := logging.NewConsole(sessionName, logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()

	if err := session.EnsureDir(sessionName); err != nil {
		fatalf("%v", err)
	}
	db, err := store.Open(session.AppDBPath(sessionName))
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		fatalf("migrate: %v", err)
	}

	c := &ctl{
		db:      db,
		engine:  intsync.NewEngine(db, bus.New(), sessionName, logger),
		cfg:     cfg,
		logger:  logger,
		jsonOut: *jsonFlag,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "chats":
		err = c.chats()
	case "messages":
		if len(args) < 2 || len(args) > 3 {
			fatalf("usage: chatlinectl messages <chat> [limit]")
		}
		limit := 20
		if len(args) == 3 {
			if limit, err = strconv.Atoi(args[2]); err != nil || limit <= 0 {
				fatalf("invalid limit: %s", args[2])
			}
		}
		err = c.messages(args[1], limit)
	case "post":
		if len(args) < 3 {
			fatalf("usage: chatlinectl post <chat> <text>")
		}
		err = c.post(args[1], strings.Join(args[2:], " "))
	case "delete":
		if len(args) != 3 {
			fatalf("usage: chatlinectl delete <chat> <msg-id>")
		}
		err = c.engine.DeleteMessage(args[1], args[2])
	case "seen":
		if len(args) != 2 {
			fatalf("usage: chatlinectl seen <chat>")
		}
		err = c.seen(args[1])
	case "import":
		if len(args) != 2 {
			fatalf("usage: chatlinectl import <file.jsonl>")
		}
		err = c.importFile(ctx, args[1])
	case "search":
		if len(args) < 2 {
			fatalf("usage: chatlinectl search <text> [chat]")
		}
		chat := ""
		if len(args) > 2 {
			chat = args[2]
		}
		err = c.search(args[1], chat)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatlinectl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  chats                   List chats")
	fmt.Fprintln(os.Stderr, "  messages <chat> [limit] Show the newest messages of a chat")
	fmt.Fprintln(os.Stderr, "  post <chat> <text>      Add an incoming message to a chat")
	fmt.Fprintln(os.Stderr, "  delete <chat> <msg-id>  Delete a message")
	fmt.Fprintln(os.Stderr, "  seen <chat>             Mark every message of a chat seen")
	fmt.Fprintln(os.Stderr, "  import <file.jsonl>     Import a message export, resuming if interrupted")
	fmt.Fprintln(os.Stderr, "  search <text> [chat]    Full-text search")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func (c *ctl) chats() error {
	chats, err := c.db.ListChats(500, 0)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(chats)
		return nil
	}
	if len(chats) == 0 {
		fmt.Println("No chats found.")
		return nil
	}
	for _, ch := range chats {
		name := ch.Name
		if name == "" {
			name = ch.JID
		}
		suffix := ""
		if ch.ContactRequest {
			suffix = " (request)"
		}
		fmt.Printf("%-32s %4d unread  %s%s\n", name, ch.UnreadCount, formatTime(ch.LastMessageAt), suffix)
	}
	return nil
}

func (c *ctl) post(chat, text string) error {
	msg := &domain.Message{
		ChatJID:     chat,
		MsgID:       uuid.NewString(),
		SenderJID:   chat,
		Body:        text,
		MessageType: "text",
		State:       domain.StateReceived,
		Timestamp:   time.Now().UnixMilli(),
	}
	id, err := c.engine.IngestMessage(msg)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(map[string]any{"id": id, "msg_id": msg.MsgID})
		return nil
	}
	fmt.Printf("Posted %s (id %d)\n", msg.MsgID, id)
	return nil
}

func (c *ctl) messages(chat string, limit int) error {
	msgs, err := c.db.ListMessages(chat, 0, limit)
	if err != nil {
		return err
	}
	names := map[string]string{}
	for i := range msgs {
		m := &msgs[i]
		if m.FromMe || m.SenderName != "" {
			continue
		}
		name, ok := names[m.SenderJID]
		if !ok {
			ct, err := c.db.GetContact(m.SenderJID)
			if err != nil {
				return err
			}
			if ct != nil {
				name = ct.Name
				if name == "" {
					name = ct.PushName
				}
			}
			names[m.SenderJID] = name
		}
		m.SenderName = name
	}
	if c.jsonOut {
		outputJSON(msgs)
		return nil
	}
	// Oldest first, like a chat transcript.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderName
		switch {
		case m.FromMe:
			sender = "me"
		case sender == "":
			sender = m.SenderJID
		}
		fmt.Printf("%s  %-20s %s\n", formatTime(m.Timestamp), sender, m.Body)
	}
	return nil
}

func (c *ctl) seen(chat string) error {
	ch, err := c.db.GetChat(chat)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("unknown chat: %s", chat)
	}
	n, err := c.db.MarkChatSeen(chat)
	if err != nil {
		return err
	}
	fmt.Printf("Marked %d messages seen\n", n)
	return nil
}

func (c *ctl) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	im := intsync.NewImporter(c.engine, intsync.NewReconciler(c.db, c.logger), 0, c.logger)
	res, err := im.Import(ctx, path, f)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(res)
		return nil
	}
	fmt.Printf("Imported %d messages, skipped %d already imported\n", res.Imported, res.Skipped)
	return nil
}

func (c *ctl) search(text, chat string) error {
	results, err := c.db.SearchMessages(text, chat, c.cfg.View.SearchLimit)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(results)
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s  %-24s %s\n", formatTime(r.Message.Timestamp), r.Message.ChatJID, r.Snippet)
	}
	fmt.Printf("%d matches\n", len(results))
	return nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
