package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blburns/simple-nfsd-sub001/internal/config"
	"github.com/blburns/simple-nfsd-sub001/internal/logger"
	"github.com/blburns/simple-nfsd-sub001/internal/metrics"
	"github.com/blburns/simple-nfsd-sub001/internal/server"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the NFS server",
	Long: `Start simplenfsd with the specified configuration.

By default the server daemonizes (forks to the background). Use
--foreground to run attached to the terminal, e.g. under a process
supervisor.

Examples:
  simplenfsd start
  simplenfsd start --foreground --config /etc/simplenfsd/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground (default: daemonize)")
	startCmd.Flags().StringVar(&pidFile, "pid", "", "PID file path (default: $XDG_STATE_HOME/simplenfsd/simplenfsd.pid)")
	startCmd.Flags().StringVar(&logFile, "log", "", "log file path for daemon mode (default: $XDG_STATE_HOME/simplenfsd/simplenfsd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return &InvalidArgsError{Err: err}
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics endpoint listening", "address", cfg.Metrics.ListenAddress)
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("simplenfsd started", "pid", os.Getpid())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		srv.Stop()
		<-serverDone
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server stopped with error", "error", err)
			return err
		}
	}

	if metricsServer != nil {
		_ = metricsServer.Close()
	}

	logger.Info("simplenfsd stopped")
	return nil
}
