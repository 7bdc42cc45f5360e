// Package main runs a topicstore broker with config-declared middleware and
// a Prometheus endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/dshills/topicstore/internal/broker"
	"github.com/dshills/topicstore/internal/config"
	"github.com/dshills/topicstore/internal/metrics"
	"github.com/dshills/topicstore/internal/ratecontrol"
	"github.com/dshills/topicstore/internal/topic"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

var log = logging.Logger("topicstore")

var uptimeTopic = topic.MustCanonicalize("topicstore/uptime")

type options struct {
	configPath  string
	metricsAddr string
	heartbeat   time.Duration
	watch       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, ok := parseFlags(os.Args[1:])
	if !ok {
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if err := cfg.ApplyLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(cfg.BrokerOptions()...)
	if err := b.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start broker: %v\n", err)
		return 1
	}

	// Scripts are closed only after the broker has stopped publishing.
	closers, err := registerMiddleware(b, cfg.Middleware)
	defer func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Stop(shutdown); err != nil {
			log.Warnw("broker shutdown", "error", err)
		}
		closeAll(closers)
	}()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, err := b.SubscribeFunc([]string{"**"}, logSample,
		broker.WithName("log"), broker.WithDispatch(broker.DispatchOffloaded)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.heartbeat > 0 {
		started := time.Now()
		if _, err := b.Every(opts.heartbeat, func() error {
			return b.Put(ctx, uptimeTopic.String(), time.Since(started).Round(time.Second).String())
		}, ratecontrol.EveryName("uptime")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if cfg.Metrics.Addr != "" {
		srv, err := serveMetrics(cfg.Metrics.Addr, b)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer srv.Close()
	}

	if opts.watch && opts.configPath != "" {
		go func() {
			err := config.Watch(ctx, opts.configPath, func(c config.Config, err error) {
				if err != nil {
					return
				}
				// Only the log level is applied live; the rest needs a restart.
				if err := c.ApplyLogging(); err != nil {
					log.Warnw("applying reloaded log level", "error", err)
				}
			})
			if err != nil {
				log.Warnw("config watcher stopped", "error", err)
			}
		}()
	}

	log.Infow("topicstore running", "version", version, "commit", commit, "middleware", len(cfg.Middleware))
	<-ctx.Done()
	log.Info("shutting down")
	return 0
}

func parseFlags(args []string) (options, bool) {
	var opts options
	var showVersion bool

	fs := flag.NewFlagSet("topicstore", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml, .json, .jsonc)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Listen address for /metrics (overrides metrics.addr)")
	fs.DurationVar(&opts.heartbeat, "heartbeat", 0, "Publish the uptime topic at this interval (0 disables)")
	fs.BoolVarP(&opts.watch, "watch", "w", false, "Reload the log level when the config file changes")
	fs.BoolVarP(&showVersion, "version", "v", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, false
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return opts, false
	}

	if showVersion {
		fmt.Printf("topicstore %s (%s)\n", version, commit)
		os.Exit(0)
	}
	return opts, true
}

func logSample(_ context.Context, s broker.Sample) error {
	log.Debugw("sample", "topic", s.Topic.String(), "value", s.Value)
	return nil
}

func serveMetrics(addr string, b *broker.Broker) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(b)); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server", "addr", addr, "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
	return srv, nil
}
