package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ning0612/dirshare/internal/config"
	"github.com/Ning0612/dirshare/internal/engine"
	"github.com/Ning0612/dirshare/internal/fileio"
	"github.com/Ning0612/dirshare/internal/lock"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/progress"
	"github.com/Ning0612/dirshare/internal/transport"
	"github.com/Ning0612/dirshare/internal/transport/wsbus"
)

var (
	flagHubAddr     string
	flagListenAddr  string
	flagEmbeddedHub bool
)

var runCmd = &cobra.Command{
	Use:   "run <shared-directory>",
	Short: "Run a replication participant over a shared directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runParticipant,
}

func init() {
	runCmd.Flags().StringVar(&flagHubAddr, "hub", "",
		"message hub address to dial (overrides config)")
	runCmd.Flags().StringVar(&flagListenAddr, "listen", "",
		"bind address for the embedded hub (overrides config)")
	runCmd.Flags().BoolVar(&flagEmbeddedHub, "embedded-hub", false,
		"host the message hub inside this participant")
}

func runParticipant(cmd *cobra.Command, args []string) error {
	sharedDir := args[0]
	if !fileio.IsDirectory(sharedDir) {
		return fmt.Errorf("specified path is not a directory: %s", sharedDir)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	defer logger.Shutdown()

	log := logger.Get()
	log.Info("dirshare starting",
		"dir", sharedDir,
		"poll_interval", cfg.Monitor.PollInterval,
		"transport_mode", string(cfg.Transport.Mode))

	// One participant per shared directory
	dirLock, err := lock.New(sharedDir, "")
	if err != nil {
		return err
	}
	if err := dirLock.Acquire(); err != nil {
		return err
	}
	defer dirLock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, hub, err := connectTransport(ctx, cfg)
	if err != nil {
		return err
	}

	dir, err := fileio.New(sharedDir)
	if err != nil {
		return err
	}

	reporter := progress.NewCallbackReporter(func(u progress.Update) {
		switch u.Type {
		case progress.UpdateComplete:
			log.Info("bulk push progress",
				"filename", u.CurrentFile,
				"files_completed", u.FilesCompleted,
				"files_total", u.FilesTotal,
				"bytes_completed", u.BytesCompleted,
				"bytes_total", u.BytesTotal)
		case progress.UpdateError:
			log.Warn("bulk push error", "filename", u.CurrentFile, "error", u.Error)
		}
	})

	eng, err := engine.New(dir, bus, engine.Options{
		PollInterval:  cfg.Monitor.PollInterval,
		DiscoveryWait: cfg.Transport.DiscoveryWait,
		Reporter:      reporter,
	})
	if err != nil {
		return fmt.Errorf("wire engine: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := eng.Start(ctx); err != nil {
			stop()
			return err
		}
		<-ctx.Done()
		return nil
	})

	err = g.Wait()

	log.Info("shutting down dirshare")
	if stopErr := eng.Stop(); stopErr != nil {
		log.Warn("engine shutdown", "error", stopErr)
	}
	if hub != nil {
		if hubErr := hub.Close(); hubErr != nil {
			log.Warn("hub shutdown", "error", hubErr)
		}
	}

	return err
}

// applyRunFlags overlays explicit command-line flags onto the loaded
// configuration
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("hub") {
		cfg.Transport.HubAddr = flagHubAddr
		cfg.Transport.Mode = config.ModeClient
	}
	if cmd.Flags().Changed("listen") {
		cfg.Transport.ListenAddr = flagListenAddr
	}
	if flagEmbeddedHub {
		cfg.Transport.Mode = config.ModeEmbedded
	}
}

// connectTransport brings up the configured transport. In embedded
// mode the returned hub is owned by the caller and must be closed.
func connectTransport(ctx context.Context, cfg *config.Config) (transport.Bus, *wsbus.Hub, error) {
	switch cfg.Transport.Mode {
	case config.ModeEmbedded:
		hub := wsbus.NewHub(cfg.Transport.ListenAddr)
		if err := hub.Start(); err != nil {
			return nil, nil, err
		}
		bus, err := wsbus.Dial(ctx, hub.Addr())
		if err != nil {
			hub.Close()
			return nil, nil, err
		}
		return bus, hub, nil

	default:
		bus, err := wsbus.Dial(ctx, cfg.Transport.HubAddr)
		if err != nil {
			return nil, nil, err
		}
		return bus, nil, nil
	}
}
