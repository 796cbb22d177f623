package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"eventcal/internal/config"
	"eventcal/internal/feed"
	"eventcal/internal/format"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/observability"
	"eventcal/internal/pipeline"
	"eventcal/internal/schedule"
	"eventcal/internal/web"
)

const version = "1.0.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}

	// CLI flags override config values if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}

	if err := appLog.Init(conf.LogFormat, conf.LogLevel); err != nil {
		appLog.Error("failed to initialize logger", err, "level", conf.LogLevel, "format", conf.LogFormat)
		return 1
	}
	defer appLog.Sync()

	appLog.Info("eventcal starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		return 1
	}

	scheduled := conf.RefreshCron != "" && !flags.once
	appLog.Info("effective config",
		"feed_url", conf.FeedURL,
		"output_dir", conf.OutputDir,
		"timezone", loc.String(),
		"calendars", len(conf.Calendars),
		"refresh", conf.RefreshCron,
		"listen", conf.Listen,
		"scheduled", scheduled,
	)

	metrics := observability.NewMetrics()
	p := pipeline.New(
		feed.NewFetcher(conf.FeedURL, conf.FetchTimeout),
		format.New(format.Options{
			RaidHourPlaceholder: conf.RaidHourPlaceholder,
			SourceLabel:         conf.SourceLabel,
			Location:            loc,
		}),
		ics.NewWriter(conf.OutputDir, conf.ProductID),
		conf.Calendars,
		metrics,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !scheduled {
		return runOnce(ctx, p, conf, metrics)
	}
	return runScheduled(ctx, p, conf, metrics, loc)
}

// runOnce performs a single refresh. Only a missing feed is a failure exit;
// individual calendar errors are reported in the log.
func runOnce(ctx context.Context, p *pipeline.Pipeline, conf *config.Config, metrics *observability.Metrics) int {
	_, err := p.Run(ctx)
	writeMetricsFile(conf, metrics)
	if err != nil {
		return 1
	}
	return 0
}

func runScheduled(ctx context.Context, p *pipeline.Pipeline, conf *config.Config, metrics *observability.Metrics, loc *time.Location) int {
	sched, err := schedule.New(conf.RefreshCron, loc)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		return 1
	}

	var srv *web.Server
	var wg sync.WaitGroup
	if conf.Listen != "" {
		srv = web.NewServer(conf, metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			}
		}()
	}

	err = sched.Run(ctx, func(ctx context.Context) {
		res, err := p.Run(ctx)
		if srv != nil {
			srv.RecordRun(res, err, time.Now())
		}
		writeMetricsFile(conf, metrics)
	})
	wg.Wait()

	if err != nil {
		appLog.Error("scheduler failed", err)
		return 1
	}
	appLog.Info("eventcal exiting")
	return 0
}

func writeMetricsFile(conf *config.Config, metrics *observability.Metrics) {
	if conf.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(conf.MetricsFile); err != nil {
		appLog.Error("failed to write metrics file", err, "path", conf.MetricsFile)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "eventcal.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh and exit even if a refresh schedule is configured")

	flag.Parse()

	return cfg
}
