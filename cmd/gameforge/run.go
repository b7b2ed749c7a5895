package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gameforge/pkg/export"
	"gameforge/pkg/session"
)

// sessionCreator starts a new session.
type sessionCreator interface {
	CreateSession(ctx context.Context, ownerID, prompt string) (*session.Session, error)
}

// advancer moves a session one phase forward.
type advancer interface {
	Advance(ctx context.Context, sessionID, userMessage string) (session.Outcome, error)
}

// runner drives one interactive session from idea to exported files.
type runner struct {
	store     sessionCreator
	advancer  advancer
	in        *bufio.Reader
	out       io.Writer
	owner     string
	exportDir string
	pause     time.Duration
}

var errNoInput = errors.New("input closed")

func newRunCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a game interactively",
		Long: `Ask for a game idea, answer the clarifying questions, and write the
generated files to <export.dir>/<owner>/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openPipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			r := &runner{
				store:     a.store,
				advancer:  a.controller,
				in:        bufio.NewReader(os.Stdin),
				out:       cmd.OutOrStdout(),
				owner:     owner,
				exportDir: a.cfg.Export.Dir,
				pause:     time.Second,
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner name (prompted when empty)")
	return cmd
}

func (r *runner) ask(query string) (string, error) {
	fmt.Fprint(r.out, query)
	line, err := r.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", errNoInput
	}
	return strings.TrimSpace(line), nil
}

func (r *runner) run(ctx context.Context) error {
	if r.owner == "" {
		name, err := r.ask("What is your name? ")
		if err != nil {
			return err
		}
		r.owner = name
	}
	prompt, err := r.ask("What game do you want to build? ")
	if err != nil {
		return err
	}

	sess, err := r.store.CreateSession(ctx, r.owner, prompt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Fprintf(r.out, "Session created: %s\n", sess.ID)

	message := ""
	for {
		outcome, err := r.advancer.Advance(ctx, sess.ID, message)
		if err != nil && outcome.Kind != session.KindError {
			return err //nolint:wrapcheck
		}

		switch outcome.Kind {
		case session.KindInit, session.KindClarifying:
			c, _ := outcome.Payload.(*session.Clarification)
			if c == nil {
				return fmt.Errorf("clarification outcome without payload")
			}
			if c.IsSufficient {
				fmt.Fprintf(r.out, "\nQuestions clarified.\nSummary: %s\n", c.Summary)
				break
			}
			r.printQuestions(c)
			if message, err = r.ask("Answer: "); err != nil {
				return err
			}

		case session.KindPlanning:
			fmt.Fprintln(r.out, "\nPlanning completed.")
			if p, ok := outcome.Payload.(*session.Plan); ok && p != nil {
				fmt.Fprintf(r.out, "  %s (%s)\n", p.Title, p.Framework)
			}
			fmt.Fprintln(r.out, "Writing code... (this might take a moment)")

		case session.KindCoding:
			fmt.Fprintln(r.out, "\nCode written.")

		case session.KindCompleted:
			a, _ := outcome.Payload.(*session.Artifact)
			return r.write(a)

		case session.KindError:
			fmt.Fprintf(r.out, "\nError: %s\n", outcome.Message())
			if err != nil {
				return err //nolint:wrapcheck
			}
			return fmt.Errorf("session %s failed: %s", sess.ID, outcome.Message())
		}

		if err := sleepCtx(ctx, r.pause); err != nil {
			return err
		}
	}
}

func (r *runner) printQuestions(c *session.Clarification) {
	line := strings.Repeat("-", 50)
	fmt.Fprintf(r.out, "\nNeed some clarification before building.\n%s\nSummary: %s\nQuestions:\n", line, c.Summary)
	for i, q := range c.Questions {
		fmt.Fprintf(r.out, "%d. %s\n", i+1, q)
	}
	fmt.Fprintln(r.out, line)
}

func (r *runner) write(a *session.Artifact) error {
	dir := export.OwnerDir(r.exportDir, r.owner)
	fmt.Fprintf(r.out, "\nBuild completed. Writing files to %s\n", dir)
	res, err := export.WriteArtifact(dir, a)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, f := range a.Files {
		fmt.Fprintf(r.out, "  - saved %s\n", f.Filename)
	}
	fmt.Fprintf(r.out, "\nGame ready: open %s\n", res.EntryPoint)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
