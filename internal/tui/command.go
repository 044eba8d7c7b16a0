package tui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatline/internal/domain"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParseAttachment parses the arguments of :attach, "<kind> <path>". The
// path may contain spaces.
func ParseAttachment(args string) (*domain.Attachment, error) {
	kind, path, ok := strings.Cut(strings.TrimSpace(args), " ")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return nil, fmt.Errorf("usage: attach <image|audio|voice|file> <path>")
	}
	k, err := domain.ParseAttachmentKind(strings.ToLower(kind))
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{Path: path, Kind: k}, nil
}
