package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:          "ecoroute",
		Short:        "Trip planner with carbon emissions and reward points, plus a crop-disease detector",
		Version:      version.BuildVersion,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(v),
		newPlanCmd(v),
		newDetectCmd(v),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves settings for cmd and installs the process logger.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newLogger writes text logs to w, which is stderr outside tests so the
// stdio transport keeps stdout to itself.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
