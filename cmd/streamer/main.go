// k8s-events-streamer watches the Events of one namespace and posts every
// event that survives the configured filters to a Slack incoming webhook.
//
// Usage:
//
//	k8s-events-streamer --cluster-name prod-eu-1 --webhook-url https://hooks.slack.com/services/...
//
// Every flag can also be set from its K8S_EVENTS_STREAMER_* environment
// variable; flags win.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/config"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/filter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/notifier"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/server"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/streamer"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "k8s-events-streamer",
		Short: "Stream Kubernetes events to Slack",
		Long: `k8s-events-streamer watches the Events of one namespace and posts
each event that passes the skip rules to a Slack incoming webhook.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Debug)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			restCfg, err := ctrl.GetConfig()
			if err != nil {
				return fmt.Errorf("load kubeconfig: %w", err)
			}
			clientset, err := kubernetes.NewForConfig(restCfg)
			if err != nil {
				return fmt.Errorf("create clientset: %w", err)
			}

			return run(ctrl.SetupSignalHandler(), cfg, clientset, logger)
		},
	}

	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		panic(err)
	}
	// --kubeconfig, registered by controller-runtime.
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return logConfig.Build()
}

// buildSender returns the sender the streamer delivers through. When async
// delivery is enabled the returned AsyncSender must be started and closed by
// the caller.
func buildSender(cfg config.Config, logger *zap.Logger) (notifier.Sender, *notifier.AsyncSender, error) {
	webhook, err := notifier.NewWebhookSender(logger, cfg.WebhookSenderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("create webhook sender: %w", err)
	}
	if !cfg.AsyncDelivery {
		return webhook, nil, nil
	}
	async := notifier.NewAsyncSender(webhook, logger, 0)
	return async, async, nil
}

// run wires the streamer and blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, client kubernetes.Interface, logger *zap.Logger) error {
	logger.Info("Starting k8s-events-streamer",
		zap.String("version", version),
		zap.String("cluster", cfg.ClusterName),
		zap.String("namespace", cfg.Namespace),
		zap.String("webhook", notifier.RedactURL(cfg.WebhookURL)),
		zap.Bool("skip_delete_events", cfg.SkipDeleteEvents),
		zap.Strings("reasons_to_skip", cfg.ReasonsToSkip),
		zap.Strings("entity_blacklist", cfg.EntityBlacklist),
		zap.Bool("async_delivery", cfg.AsyncDelivery),
	)

	filterCfg, err := cfg.FilterConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender, async, err := buildSender(cfg, logger)
	if err != nil {
		return err
	}
	if async != nil {
		async.Start(ctx)
		defer async.Close()
	}

	s := streamer.New(
		streamer.NewKubeEventSource(client, logger),
		filter.NewChain(filterCfg),
		cfg.DeliveryConfig(),
		sender,
		logger,
		streamer.Options{Namespace: cfg.Namespace, Backoff: cfg.Backoff},
	)

	serverErr := make(chan error, 1)
	if cfg.MetricsBindAddress != "" {
		srv := server.NewServer(server.Config{
			Addr: cfg.MetricsBindAddress,
			ReadyChecks: map[string]healthz.Checker{
				"watch": func(*http.Request) error { return s.Ready() },
			},
		}, logger)
		go func() { serverErr <- srv.Start(ctx) }()
	}

	streamErr := make(chan error, 1)
	go func() { streamErr <- s.Run(ctx) }()

	select {
	case err := <-streamErr:
		return err
	case err := <-serverErr:
		if err != nil {
			logger.Error("Ops server failed", zap.Error(err))
			cancel()
			<-streamErr
			return fmt.Errorf("ops server: %w", err)
		}
		return <-streamErr
	}
}
