package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"mentorlink/internal/app/engine"
	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
)

const threadHelp = `Type a message and press enter to send it. Commands:
  /file <path> [text]   send an attachment, optionally with text
  /react <id> <emoji>   react to a message
  /delete <id>          delete one of your messages
  /read                 mark the thread as read
  /refresh              fetch now
  /mute, /unmute        stop or resume background refresh and unread badges
  /quit                 leave the thread`

// threadCmd creates the interactive thread command.
func threadCmd(in io.Reader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "thread",
		Usage:     "Open the conversation with your mentor or one of your mentees",
		ArgsUsage: "<counterpartId>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one counterpart id")
			}
			cl, err := signIn(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			th, err := cl.router.OpenThread(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, threadHelp)
			return runThread(c.Context, in, out, cl.session, th)
		},
	}
}

// runThread drives an open thread until the input ends, /quit or ctx is cancelled.
func runThread(ctx context.Context, in io.Reader, out io.Writer, s *engine.Session, th *engine.Thread) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := scanLines(ctx, in)
	var last string

	redraw := func() {
		frame := renderThread(s.Self(), th, s.Notifier())
		if frame != last {
			fmt.Fprint(out, frame)
			last = frame
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-th.Changes():
			redraw()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, th, s.Notifier(), line)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", userMessage(err))
			}
			if quit {
				return nil
			}
			redraw()
		}
	}
}

// handleLine runs one line of user input against th. It reports whether the user asked
// to leave.
func handleLine(ctx context.Context, th *engine.Thread, n *engine.Notifier, line string) (bool, error) {
	cmd, rest := parseInput(line)
	switch cmd {
	case "":
		if strings.TrimSpace(rest) == "" {
			return false, nil
		}
		_, err := th.Send(ctx, rest, nil)
		return false, err
	case "quit", "q":
		return true, nil
	case "file":
		path, text, _ := strings.Cut(rest, " ")
		att, err := readAttachment(path)
		if err != nil {
			return false, err
		}
		_, err = th.Send(ctx, text, att)
		return false, err
	case "react":
		id, emoji, _ := strings.Cut(rest, " ")
		return false, th.React(ctx, id, emoji)
	case "delete":
		return false, th.Delete(ctx, rest)
	case "read":
		return false, th.MarkRead(ctx)
	case "refresh":
		return false, th.Refresh(ctx)
	case "mute":
		n.SetEnabled(false)
	case "unmute":
		n.SetEnabled(true)
	default:
		return false, fmt.Errorf("unknown command /%s", cmd)
	}
	return false, nil
}

// parseInput splits "/cmd args" into its parts. Plain text has an empty command.
func parseInput(line string) (cmd, rest string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return "", line
	}
	cmd, rest, _ = strings.Cut(trimmed[1:], " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

// readAttachment loads path, refusing files over the attachment cap before reading them.
func readAttachment(path string) (*engine.Attachment, error) {
	if path == "" {
		return nil, fmt.Errorf("usage: /file <path> [text]")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if cerr := mentorship.ValidateFileSize(info.Size()); cerr != nil {
		return nil, cerr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &engine.Attachment{Name: filepath.Base(path), Data: data}, nil
}

// renderThread draws the whole thread as text.
func renderThread(self user.User, th *engine.Thread, n *engine.Notifier) string {
	var b strings.Builder

	rel, open := th.Relationship()
	if !open {
		b.WriteString("-- no thread open --\n")
		return b.String()
	}

	status := th.State().String()
	if err := th.Err(); err != nil {
		status += ": " + userMessage(err)
	}
	if !n.Enabled() {
		status += ", muted"
	}
	header := fmt.Sprintf("-- thread with %s (%s)", rel.Counterpart(self.ID), status)
	if unread, shown := th.Badge(); shown {
		header += fmt.Sprintf(" [%d unread]", unread)
	}
	b.WriteString(header + " --\n")

	for _, e := range th.Snapshot() {
		b.WriteString(formatEntry(self, e))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatEntry(self user.User, e engine.Entry) string {
	who := e.SenderID
	if e.SenderID == self.ID {
		who = "you"
	}

	var parts []string
	if body := mentorship.BodyOf(e.Content); body != "" {
		parts = append(parts, body)
	}
	if f, ok := mentorship.FileOf(e.Content); ok {
		ref := f.Name
		if f.ID != "" {
			ref += ", download " + f.ID
		}
		parts = append(parts, "["+ref+"]")
	}

	line := fmt.Sprintf("%s %s: %s", e.Timestamp.Local().Format("15:04"), who, strings.Join(parts, " "))

	if len(e.Reactions) > 0 {
		counts := make(map[string]int)
		var order []string
		for _, r := range e.Reactions {
			if counts[r.Emoji] == 0 {
				order = append(order, r.Emoji)
			}
			counts[r.Emoji]++
		}
		var rs []string
		for _, emoji := range order {
			rs = append(rs, fmt.Sprintf("%s%d", emoji, counts[emoji]))
		}
		line += "  " + strings.Join(rs, " ")
	}

	switch {
	case e.Failed:
		line += "  (not delivered)"
	case e.Pending:
		line += "  (sending)"
	default:
		line += "  #" + e.ID
	}
	return line
}
