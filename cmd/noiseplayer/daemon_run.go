package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noiseplayer/internal/daemonctl"
	"noiseplayer/internal/daemonrun"
	"noiseplayer/internal/logging"
	"noiseplayer/internal/player"
)

// newDaemonRunCommand is the entrypoint of the process spawned by `start`. It
// expects the locked pid file on fd 3 and the readiness pipe on fd 4.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var volume float64
	var sessionID string

	cmd := &cobra.Command{
		Use:    daemonctl.RunDaemonCommand,
		Short:  "Run the daemon in the foreground (internal)",
		Hidden: true,
		Args:   noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
				SessionID:   sessionID,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			return daemonrun.Run(cmd.Context(), daemonrun.Options{
				PIDFile:  ctx.pidFile(),
				Volume:   volume,
				Runner:   player.NewFFplay(cfg, logger),
				Logger:   logger,
				LockFD:   daemonctl.InheritedLockFD,
				Ready:    os.NewFile(daemonctl.InheritedReadyFD, "ready"),
				ReadyAck: daemonctl.ReadyAck,
			})
		},
	}
	cmd.Flags().Float64Var(&volume, "volume", 0.5, "Playback volume")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Identifier attached to every log line")
	return cmd
}
