package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/dirshare/internal/config"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport/wsbus"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run a standalone message hub for a participant cluster",
	Args:  cobra.NoArgs,
	RunE:  runHub,
}

func init() {
	hubCmd.Flags().StringVar(&flagListenAddr, "listen", "",
		"bind address for the hub (overrides config)")
}

func runHub(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Transport.ListenAddr = flagListenAddr
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	defer logger.Shutdown()

	hub := wsbus.NewHub(cfg.Transport.ListenAddr)
	if err := hub.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Get().Info("shutting down hub")
	return hub.Close()
}
