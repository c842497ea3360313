package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"mentorlink/internal/app/engine"
	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
	"mentorlink/internal/configs"
	"mentorlink/internal/pkg/auth/jwt"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/logx"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "mentorctl",
		Usage:   "Mentorship client",
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "API server URL (default $MENTORLINK_URL or http://localhost:8080)"},
			&cli.StringFlag{Name: "token", Usage: "Bearer token (default $MENTORLINK_TOKEN)"},
			&cli.DurationFlag{Name: "poll-interval", Usage: "Thread refresh period (default $MENTORLINK_POLL_INTERVAL or 30s)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log engine activity to stderr"},
		},
		Before: func(c *cli.Context) error {
			logx.InitClientLogger(os.Stderr, c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			loginCmd(out),
			statusCmd(out),
			selectCmd(out),
			threadCmd(in, out),
			endCmd(out),
			downloadCmd(out),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// clientConfig merges environment configuration with global flags.
func clientConfig(c *cli.Context) (*configs.ClientConfig, error) {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	if c.IsSet("url") {
		cfg.BaseURL = strings.TrimRight(c.String("url"), "/")
	}
	if c.IsSet("token") {
		cfg.Token = strings.TrimSpace(c.String("token"))
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}
	return cfg, nil
}

// client bundles what every signed-in command needs.
type client struct {
	api     *engine.APIClient
	session *engine.Session
	router  *engine.Router
}

// signIn builds and starts a session from the configured token. Callers must close it.
func signIn(c *cli.Context) (*client, error) {
	cfg, err := clientConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	claims, err := jwt.PeekToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("unreadable token: %w", err)
	}
	self := user.User{ID: claims.ID, Role: user.Role(claims.Role), DisplayName: claims.DisplayName}

	api := engine.NewAPIClient(cfg.BaseURL, cfg.Token, nil)
	session, err := engine.NewSession(self, api,
		engine.WithPollInterval(cfg.PollInterval),
		engine.WithLogger(logx.Component("engine")),
	)
	if err != nil {
		return nil, err
	}
	if err := session.Init(c.Context); err != nil {
		return nil, err
	}
	return &client{api: api, session: session, router: engine.NewRouter(session)}, nil
}

func (cl *client) Close() {
	cl.session.Teardown()
}

// loginCmd creates the login command.
func loginCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Get a development token (development servers only)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "Directory user id"},
			&cli.StringFlag{Name: "role", Required: true, Usage: "student|alumni"},
			&cli.StringFlag{Name: "name", Usage: "Display name (defaults to id)"},
			&cli.StringFlag{Name: "department", Usage: "Department"},
			&cli.StringFlag{Name: "skills", Usage: "Comma-separated skillset"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := clientConfig(c)
			if err != nil {
				return err
			}
			role, err := user.ParseRole(c.String("role"))
			if err != nil {
				return err
			}

			u := user.User{
				ID:          c.String("id"),
				Role:        role,
				DisplayName: c.String("name"),
				Department:  c.String("department"),
				Skillset:    parseList(c.String("skills")),
			}
			token, err := engine.NewAPIClient(cfg.BaseURL, "", nil).DevToken(c.Context, u)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, token)
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show your mentorships",
		Action: func(c *cli.Context) error {
			cl, err := signIn(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			view, err := cl.router.Resolve(c.Context)
			if err != nil {
				return err
			}
			printView(out, cl.session.Self(), view)
			return nil
		},
	}
}

// selectCmd creates the select command.
func selectCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Choose your mentees (mentors only, once). Without ids, lists the candidates",
		ArgsUsage: "[studentId...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "capacity", Aliases: []string{"c"}, Usage: "How many mentees you can take (defaults to the number of ids)"},
		},
		Action: func(c *cli.Context) error {
			cl, err := signIn(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			ids := c.Args().Slice()
			capacity := c.Int("capacity")
			if capacity == 0 {
				capacity = max(len(ids), 1)
			}

			sel, err := cl.router.BeginSelection(c.Context, capacity)
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Fprintf(out, "Available students (capacity %d):\n", sel.Capacity())
				for _, u := range sel.Candidates() {
					fmt.Fprintf(out, "  %s\n", formatUser(u))
				}
				return nil
			}

			for _, id := range ids {
				if _, err := sel.Toggle(id); err != nil {
					if errs.HasCode(err, errs.ErrCapacityExceeded) {
						fmt.Fprintf(out, "skipped %s: %s\n", id, userMessage(err))
						continue
					}
					return fmt.Errorf("%s: %w", id, err)
				}
			}

			rels, err := cl.router.CommitSelection(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Started %d mentorship(s):\n", len(rels))
			for _, rel := range rels {
				fmt.Fprintf(out, "  %s\n", formatRelationship(rel, cl.session.Self().ID))
			}
			return nil
		},
	}
}

// endCmd creates the end command.
func endCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "end",
		Usage:     "End a mentorship (mentors only)",
		ArgsUsage: "<menteeId|relationshipId>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one mentee or relationship id")
			}
			cl, err := signIn(c)
			if err != nil {
				return err
			}
			defer cl.Close()

			rel, ok := findRelationship(cl.session, c.Args().First())
			if !ok {
				return errs.NewError(errs.ErrRelationshipNotFound)
			}
			ended, err := cl.router.EndRelationship(c.Context, rel.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Ended %s\n", formatRelationship(ended, cl.session.Self().ID))
			return nil
		},
	}
}

// downloadCmd creates the download command.
func downloadCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a message attachment",
		ArgsUsage: "<fileId>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination file, - for stdout", Value: "-"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file id")
			}
			cfg, err := clientConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			api := engine.NewAPIClient(cfg.BaseURL, cfg.Token, nil)

			dst := out
			if path := c.String("output"); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			n, err := api.Download(c.Context, c.Args().First(), dst)
			if err != nil {
				return err
			}
			if dst != out {
				fmt.Fprintf(out, "Saved %d bytes to %s\n", n, c.String("output"))
			}
			return nil
		},
	}
}

// findRelationship matches ref against the caller's active relationship ids and
// counterpart ids.
func findRelationship(s *engine.Session, ref string) (mentorship.Relationship, bool) {
	self := s.Self()
	for _, rel := range s.Store().Current(self.ID, self.Role) {
		if rel.ID == ref || rel.Counterpart(self.ID) == ref {
			return rel, true
		}
	}
	return mentorship.Relationship{}, false
}

func printView(out io.Writer, self user.User, view engine.View) {
	switch view.Kind {
	case engine.ViewStudentAssigned:
		fmt.Fprintf(out, "Your mentor: %s\n", formatRelationship(*view.Relationship, self.ID))
		fmt.Fprintf(out, "Open the thread with: mentorctl thread %s\n", view.Relationship.MentorID)
	case engine.ViewStudentUnassigned:
		fmt.Fprintln(out, "You do not have a mentor yet. Mentors choose their mentees.")
	case engine.ViewMentorSelect:
		fmt.Fprintln(out, "You have no mentees. Run `mentorctl select` to see who is available.")
	case engine.ViewMentorMentees:
		fmt.Fprintf(out, "Your mentees (%d):\n", len(view.Mentees))
		for _, rel := range view.Mentees {
			fmt.Fprintf(out, "  %s\n", formatRelationship(rel, self.ID))
		}
	}

	if self.Role == user.RoleStudent {
		if view.ListingErr != nil {
			fmt.Fprintf(out, "Mentor listing unavailable: %s\n", userMessage(view.ListingErr))
			return
		}
		fmt.Fprintf(out, "Mentors with open places (%d):\n", len(view.AvailableMentors))
		for _, u := range view.AvailableMentors {
			fmt.Fprintf(out, "  %s\n", formatUser(u))
		}
	}
}

func formatUser(u user.User) string {
	s := fmt.Sprintf("%s (%s)", u.DisplayName, u.ID)
	if u.Department != "" {
		s += " - " + u.Department
	}
	if len(u.Skillset) > 0 {
		s += " [" + strings.Join(u.Skillset, ", ") + "]"
	}
	return s
}

func formatRelationship(rel mentorship.Relationship, selfID string) string {
	other := rel.Counterpart(selfID)
	if p := rel.Mentee; p != nil && rel.MenteeID == other {
		other = formatUser(*p)
	} else if p := rel.Mentor; p != nil && rel.MentorID == other {
		other = formatUser(*p)
	}
	return fmt.Sprintf("%s since %s, relationship %s", other, rel.StartedAt.Local().Format(time.DateOnly), rel.ID)
}

// userMessage returns the human-facing part of err.
func userMessage(err error) string {
	if cerr, ok := errs.As(err); ok {
		return cerr.Message
	}
	return err.Error()
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
