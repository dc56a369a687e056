package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"noiseplayer/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent daemon lifecycle events",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			stdout := cmd.OutOrStdout()

			path := cfg.HistoryPath()
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(stdout, "No lifecycle events recorded")
				return nil
			}

			store, err := history.Open(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			events, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(stdout, "No lifecycle events recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderHistory(events, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of events to show")
	return cmd
}

func renderHistory(events []history.Event, now time.Time) string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		pid := ""
		if event.PID > 0 {
			pid = strconv.Itoa(event.PID)
		}
		volume := ""
		if event.Kind == history.KindSpawned || event.Kind == history.KindSpawnFailed {
			volume = strconv.FormatFloat(event.Volume, 'g', -1, 64)
		}
		rows = append(rows, []string{
			event.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.RelTime(event.RecordedAt, now, "ago", "from now"),
			event.Kind.Label(),
			pid,
			volume,
			event.Detail,
		})
	}
	return renderTable([]column{
		{header: "Time"},
		{header: "When"},
		{header: "Event"},
		{header: "PID", align: alignRight},
		{header: "Volume", align: alignRight},
		{header: "Detail", maxWidth: 48},
	}, rows)
}
