package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"montage/internal/events"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream job lifecycle events from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("REDIS_ADDR is not configured")
			}

			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer rdb.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s on %s\n", cfg.Redis.EventsChannel, cfg.Redis.Addr)
			return events.Subscribe(cmd.Context(), rdb, cfg.Redis.EventsChannel, func(ev events.Event) {
				line := fmt.Sprintf("%s  %s  %-9s %3d%%", ev.At.Local().Format(time.TimeOnly), ev.JobID, ev.Status, ev.Progress)
				if ev.Error != "" {
					line += "  " + ev.Error
				}
				fmt.Fprintln(out, line)
			})
		},
	}
}
