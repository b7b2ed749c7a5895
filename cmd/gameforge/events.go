package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gameforge/pkg/eventlog"
)

func newEventsCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "events [session-id]",
		Short: "Print recorded phase transitions, optionally for one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.EventLog.Dir
			}
			var sessionID string
			if len(args) == 1 {
				sessionID = args[0]
			}
			events, err := collectEvents(dir, sessionID)
			if err != nil {
				return err
			}
			return writeEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "event log directory (default: eventlog.dir)")
	return cmd
}

// collectEvents reads every daily log in dir, oldest file first, keeping
// only sessionID's events when it is set.
func collectEvents(dir, sessionID string) ([]eventlog.Event, error) {
	if dir == "" {
		return nil, errors.New("event log is disabled (eventlog.dir is empty)")
	}
	files, err := eventlog.ListLogFiles(dir)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var out []eventlog.Event
	for _, f := range files {
		events, err := eventlog.ReadEvents(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		for _, ev := range events {
			if sessionID == "" || ev.SessionID == sessionID {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func writeEvents(w io.Writer, events []eventlog.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tFROM\tTO\tKIND\tATTEMPTS\tERROR")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			ev.Timestamp.Format("2006-01-02 15:04:05"), ev.SessionID, ev.From, ev.To, ev.Kind, ev.Attempts, ev.Error)
	}
	return tw.Flush() //nolint:wrapcheck
}
