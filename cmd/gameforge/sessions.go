package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gameforge/pkg/export"
	"gameforge/pkg/session"
)

const defaultOwner = "cli"

func newNewCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "new <prompt>",
		Short: "Create a session and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.store.CreateSession(cmd.Context(), owner, args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", defaultOwner, "session owner")
	return cmd
}

func newAdvanceCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "advance <session-id>",
		Short: "Advance a session by one phase and print the outcome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openPipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, advErr := a.controller.Advance(cmd.Context(), args[0], message)
			if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}
			return advErr //nolint:wrapcheck
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "answer to the clarifying questions")
	return cmd
}

func newShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			return writeSession(cmd.OutOrStdout(), sess, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func newListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.store.ListSessions(cmd.Context(), owner)
			if err != nil {
				return err //nolint:wrapcheck
			}
			writeSummaries(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", defaultOwner, "session owner")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		dir   string
		clean bool
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a completed session's files to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			if sess.Phase != session.PhaseCompleted {
				return fmt.Errorf("session %s is %s, not COMPLETED", sess.ID, sess.Phase)
			}
			if dir == "" {
				dir = export.OwnerDir(a.cfg.Export.Dir, sess.OwnerID)
			}
			if clean {
				if err := export.CleanDir(dir); err != nil {
					return err //nolint:wrapcheck
				}
			}
			res, err := export.WriteArtifact(dir, sess.Artifact)
			if err != nil {
				return err //nolint:wrapcheck
			}
			out := cmd.OutOrStdout()
			for _, f := range res.Files {
				fmt.Fprintln(out, f)
			}
			fmt.Fprintf(out, "entry point: %s\n", res.EntryPoint)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default <export.dir>/<owner>)")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove existing files in the output directory first")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeSession(w io.Writer, sess *session.Session, format string) error {
	switch format {
	case "json":
		return writeJSON(w, sess)
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (json, yaml)", format)
	}
}

func writeSummaries(w io.Writer, list []session.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE")
	for _, s := range list {
		title := s.Title
		if title == "" {
			title = s.Prompt
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Phase, s.CreatedAt.Format("2006-01-02 15:04"), title)
	}
	_ = tw.Flush()
}
