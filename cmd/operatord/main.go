package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fair-protocol/operator/config"
	"github.com/fair-protocol/operator/internal/bundlr"
	"github.com/fair-protocol/operator/internal/gateway"
	"github.com/fair-protocol/operator/internal/inference"
	"github.com/fair-protocol/operator/internal/metrics"
	"github.com/fair-protocol/operator/internal/operator"
	"github.com/fair-protocol/operator/internal/ops"
	"github.com/fair-protocol/operator/internal/payment"
	"github.com/fair-protocol/operator/internal/wallet"
	"github.com/fair-protocol/operator/pkg/logger"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "operatord",
		Short: "Fair Protocol inference operator daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&configPath, "config", "config/config.yaml", "path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("operatord %s (built %s)\n", version, buildTime)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	log := logger.New("operatord")
	log.Info("Starting Fair Protocol operator", "version", version, "build_time", buildTime)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	w, err := wallet.Load(cfg.Operator.WalletPath)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	log.Info("Wallet loaded", "address", w.Address)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.New(cfg.Gateway.GraphQLURL, cfg.Gateway.DataURL, cfg.Gateway.Timeout)
	bundler := bundlr.NewClient(cfg.Bundler.NodeURL, cfg.Bundler.RegistryURL, cfg.Bundler.RegisterProvider, cfg.Bundler.Timeout)

	log.Info("Discovering registrations")
	regs, err := operator.Discover(ctx, gw, w.Address, cfg.URLs, log)
	if err != nil {
		return fmt.Errorf("discover registrations: %w", err)
	}
	if len(regs) == 0 {
		return fmt.Errorf("no usable registrations; register scripts and map their backends in the configuration")
	}
	state := operator.NewState(regs)

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Error("Metrics server failed", "error", err)
			cancel()
		}
	}()

	opsServer := ops.NewServer(cfg.Server.OpsPort, w.Address, state)
	go func() {
		if err := opsServer.Start(); err != nil {
			log.Error("Ops server failed", "error", err)
			cancel()
		}
	}()

	pipeline := operator.NewPipeline(
		gw,
		payment.NewVerifier(gw),
		inference.NewClient(cfg.Operator.InferenceTimeout, cfg.Operator.OutputDir),
		bundler,
		bundler,
		w.Address,
		cfg.Operator.MaxImages,
		log.With("component", "pipeline"),
	)
	dispatcher := operator.NewDispatcher(ctx, pipeline, state)

	var consumerWg sync.WaitGroup
	consumerWg.Add(1)
	go func() {
		defer consumerWg.Done()
		operator.ConsumeEvents(dispatcher.Events(), log.With("component", "events"))
	}()

	var loopWg sync.WaitGroup
	beacon := operator.NewBeacon(bundler, w.Address, cfg.Operator.BeaconInterval, log.With("component", "beacon"))
	loopWg.Add(1)
	go func() {
		defer loopWg.Done()
		beacon.Run(ctx)
	}()

	poller := operator.NewPoller(gw, dispatcher, state, w.Address, cfg.Operator.StartBlockHeight, cfg.Operator.SleepTime, log.With("component", "poller"))
	loopWg.Add(1)
	go func() {
		defer loopWg.Done()
		poller.Run(ctx)
	}()
	log.Info("Operator loop started",
		"registrations", fmt.Sprintf("%d", len(regs)),
		"sleep", cfg.Operator.SleepTime.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received interrupt signal, shutting down gracefully")
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	}
	cancel()

	// Join the poller before closing the dispatcher so nothing submits
	// into a closed event channel; in-flight jobs see the cancelled
	// context, fail fast, and stay unmarked for the next start.
	loopWg.Wait()
	dispatcher.Close()
	consumerWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := opsServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop ops server gracefully", "error", err)
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop metrics server gracefully", "error", err)
	}

	log.Info("Fair Protocol operator stopped")
	return nil
}
