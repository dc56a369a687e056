package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"noiseplayer/internal/daemonctl"
	"noiseplayer/internal/history"
	"noiseplayer/internal/logging"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var volumeFlag float64
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the noise daemon",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.ensureConfig()
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			volume := cfg.Volume
			if cmd.Flags().Changed("volume") {
				volume = volumeFlag
			}
			pidFile := ctx.pidFile()
			sessionID := uuid.NewString()
			logger := logging.WithContext(logging.WithSessionID(cmd.Context(), sessionID), ctx.loggerValue())

			controller := daemonctl.NewController(daemonctl.LaunchOptions{
				PIDFile:    pidFile,
				ConfigPath: ctx.configFlagValue(),
				Volume:     volume,
				SessionID:  sessionID,
				LogPath:    cfg.DaemonLogPath(),
				Logger:     logger,
			})
			result, err := controller.Spawn(cmd.Context())
			event := history.Event{PID: result.PID, Volume: volume, PIDFile: pidFile, SessionID: sessionID}

			switch {
			case errors.Is(err, daemonctl.ErrAlreadyRunning):
				fmt.Fprintln(stdout, "Daemon already running.")
				event.Kind = history.KindRejected
				ctx.recordEvent(cmd.Context(), event)
				return err
			case err != nil:
				event.Kind = history.KindSpawnFailed
				event.Detail = err.Error()
				ctx.recordEvent(cmd.Context(), event)
				if errors.Is(err, daemonctl.ErrDaemonExited) {
					return fmt.Errorf("%w (see %s)", err, cfg.DaemonLogPath())
				}
				return err
			}

			fmt.Fprintf(stdout, "Spawned daemon with pid %d\n", result.PID)
			if !result.Ready {
				fmt.Fprintf(stdout, "Daemon has not confirmed startup yet; check %s\n", cfg.DaemonLogPath())
			}
			event.Kind = history.KindSpawned
			ctx.recordEvent(cmd.Context(), event)
			return nil
		},
	}
	startCmd.Flags().Float64Var(&volumeFlag, "volume", 0, "Override the configured volume (0.0-1.0)")

	var waitFlag time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Send SIGTERM to the running daemon",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pidFile := ctx.pidFile()

			result, err := daemonctl.Stop(daemonctl.StopOptions{
				PIDFile: pidFile,
				Logger:  ctx.loggerValue(),
			})
			event := history.Event{PID: result.PID, PIDFile: pidFile}
			switch {
			case errors.Is(err, daemonctl.ErrNotRunning):
				fmt.Fprintln(stdout, "Daemon not running.")
				event.Kind = history.KindNotRunning
				ctx.recordEvent(cmd.Context(), event)
				return err
			case isCorrupt(err):
				event.Kind = history.KindCorruptPID
				event.Detail = err.Error()
				ctx.recordEvent(cmd.Context(), event)
				return fmt.Errorf("refusing to signal: %w (inspect or remove %s)", err, pidFile)
			case err != nil:
				return err
			}

			switch result.Outcome {
			case daemonctl.OutcomeAlreadyGone:
				fmt.Fprintf(stdout, "Daemon with pid %d was already gone.\n", result.PID)
				event.Kind = history.KindAlreadyGone
			case daemonctl.OutcomeDeliveryFailed:
				fmt.Fprintf(stdout, "Failed to kill daemon with pid %d: %v\n", result.PID, result.Err)
				event.Kind = history.KindStopFailed
				event.Detail = result.Err.Error()
			default:
				fmt.Fprintf(stdout, "Sent SIGTERM to daemon with pid %d\n", result.PID)
				event.Kind = history.KindStopped
			}
			ctx.recordEvent(cmd.Context(), event)

			if waitFlag <= 0 || result.Outcome != daemonctl.OutcomeSignalled {
				return nil
			}
			waitCtx, cancel := context.WithTimeout(cmd.Context(), waitFlag)
			defer cancel()
			if err := daemonctl.WaitForRelease(waitCtx, pidFile, 50*time.Millisecond); err != nil {
				return fmt.Errorf("daemon with pid %d still holds %s after %s", result.PID, pidFile, waitFlag)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&waitFlag, "wait", 0, "Wait up to this long for the daemon to exit")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and environment checks",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			pidFile := ctx.pidFile()
			status, err := daemonctl.Probe(pidFile)
			if err != nil {
				logging.WarnWithContext(ctx.loggerValue(), "daemon probe failed", "status_probe_failed",
					logging.String(logging.FieldPIDFile, pidFile),
					logging.Error(err),
				)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			view := statusView{
				Status:       status,
				ProbeErr:     err,
				ConfigPath:   ctx.configPath,
				ConfigErr:    ctx.configErr,
				Volume:       cfg.Volume,
				LogPath:      cfg.DaemonLogPath(),
				HistoryPath:  cfg.HistoryPath(),
				Checks:       runChecks(cfg),
				Dependencies: checkDependencies(cfg),
			}
			for _, line := range view.lines(colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func trimmedOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
