package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	api "montage/internal/contracts/render/v1"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <design.json>",
		Short: "Submit a design to the render gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, body, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.Submit(cmd.Context(), body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.JobID)
			if !wait {
				return nil
			}

			final, err := pollUntilDone(cmd.Context(), client, resp.JobID, interval, out)
			if err != nil {
				return err
			}
			if final.Status == "FAILED" {
				return fmt.Errorf("render failed: %s", deref(final.Error))
			}
			fmt.Fprintln(out, deref(final.URL))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval with --wait")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			st, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(statusHeaders, [][]string{statusRow(st)}, 2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		status string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List render jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.List(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			if len(list.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(list.Jobs))
			for _, st := range list.Jobs {
				rows = append(rows, statusRow(st))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(statusHeaders, rows, 2))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

var statusHeaders = []string{"Job", "Status", "Progress", "Detail"}

func statusRow(st api.Status) []string {
	detail := ""
	switch {
	case st.Error != nil:
		detail = *st.Error
	case st.URL != nil:
		detail = *st.URL
	}
	return []string{st.ID, st.Status, strconv.Itoa(st.Progress) + "%", detail}
}

func pollUntilDone(ctx context.Context, client *gatewayClient, id string, interval time.Duration, out io.Writer) (api.Status, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1
	for {
		st, err := client.Status(ctx, id)
		if err != nil {
			return api.Status{}, err
		}
		if st.Progress != last {
			fmt.Fprintf(out, "%s %d%%\n", st.Status, st.Progress)
			last = st.Progress
		}
		if st.Status == "COMPLETED" || st.Status == "FAILED" {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return api.Status{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
