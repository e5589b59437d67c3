package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/livetiming-connector/internal/config"
	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/hub"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/notify"
	"github.com/Guliveer/livetiming-connector/internal/server"
	"github.com/Guliveer/livetiming-connector/internal/sink"
	"github.com/Guliveer/livetiming-connector/internal/stats"
	"github.com/Guliveer/livetiming-connector/internal/supervisor"
	"github.com/Guliveer/livetiming-connector/internal/telemetry"
)

const banner = `
+--------------------------------------------------+
|              Live Timing Connector               |
+--------------------------------------------------+
`

const forcedExitTimeout = 30 * time.Second

type runOptions struct {
	*rootOptions
	configFile string
	port       int
	messageLog string
	baseURL    string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the live timing hub and forward messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return opts.run(ctx, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", config.DefaultConfigFile, "Path to the configuration file")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Port of the status server (overrides PORT env)")
	cmd.Flags().StringVar(&opts.messageLog, "message-log", "", "Append every raw hub message to this file")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "SignalR base URL (overrides LIVETIMING_BASE_URL env)")
	return cmd
}

func (o *runOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.messageLog != "" {
		cfg.Source.MessageLog = o.messageLog
	}
	if o.baseURL != "" {
		cfg.Source.BaseURL = o.baseURL
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configFile, err)
	}
	return cfg, nil
}

func (o *runOptions) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	rootLog, err := o.setupLogger(cfg.Log, "")
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	logFlags(rootLog, cmd.Flags())

	fmt.Print(banner)

	if cfg.Metrics.Enabled {
		shutdown, err := telemetry.Setup(os.Stdout, cfg.Metrics.Interval)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				rootLog.Warn("Failed to flush metrics", "error", err)
			}
		}()
	}

	dispatcher := notify.NewDispatcher(cfg.Notifications, rootLog.WithComponent("notify"))
	if dispatcher.HasNotifiers() {
		rootLog.SetNotifyFunc(dispatcher.NotifyFunc())
		rootLog.Info("Notifications enabled", "providers", dispatcher.Names())
	}
	defer func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := dispatcher.Wait(waitCtx); err != nil {
			rootLog.Warn("Pending notifications dropped", "error", err)
		}
	}()

	sinks, err := openSinks(ctx, cfg.Sinks, rootLog)
	if err != nil {
		return err
	}
	fanout := sink.NewFanout(sinks, cfg.Sinks.Buffer, rootLog.WithComponent("sink"))
	monitor := stats.New(cfg.Server.MessageQueueSize, cfg.Server.RateWindow)

	var broadcaster *server.Broadcaster
	if cfg.Server.IsEnabled() {
		broadcaster = server.NewBroadcaster(0)
	}

	var sup *supervisor.Supervisor
	consumer := func(msg model.LiveTimingMessage) {
		sup.Consume(msg)
		monitor.Consume(msg)
		fanout.Consume(msg)
		if broadcaster != nil {
			broadcaster.Consume(msg)
		}
	}

	hubLog := rootLog.WithComponent("hub")
	conn, err := hub.New(hub.Config{
		BaseURL:              cfg.Source.BaseURL,
		Streams:              cfg.Source.Streams,
		ConnectWait:          cfg.Source.ConnectWait,
		KeepAliveInterval:    cfg.Source.KeepAliveInterval,
		HandshakeTimeout:     cfg.Source.HandshakeTimeout,
		MaxConsecutiveErrors: cfg.Source.MaxConsecutiveErrors,
		MessageLogPath:       cfg.Source.MessageLog,
		OnGiveUp: func(err error) {
			hubLog.Event(context.Background(), model.EventConnectorGaveUp,
				"Hub connection closed after repeated failures", "error", err)
		},
	}, consumer, hubLog)
	if err != nil {
		_ = fanout.Close()
		return err
	}

	sup = supervisor.New(supervisor.Config{
		Interval:      cfg.Supervisor.Interval,
		GracePeriod:   cfg.Supervisor.GracePeriod,
		DataRecency:   cfg.Supervisor.DataRecency,
		IdleReconnect: cfg.Supervisor.IdleReconnect,
	}, conn, rootLog.WithComponent("supervisor"))

	rootLog.Event(ctx, model.EventConnectorStarted, "Connector started",
		"base_url", cfg.Source.BaseURL, "streams", len(cfg.Source.Streams), "sinks", len(sinks))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return fanout.Run(gctx) })

	if cfg.Server.IsEnabled() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		statusServer := server.NewStatusServer(addr, conn, sup, monitor, broadcaster, rootLog.WithComponent("http"))
		g.Go(func() error { return statusServer.Run(gctx) })
	}

	g.Go(func() error {
		if err := conn.Connect(gctx); err != nil {
			hubLog.Warn("Initial hub connection failed", "error", err)
		}
		if cfg.Supervisor.IsEnabled() {
			return sup.Run(gctx)
		}
		<-gctx.Done()
		return gctx.Err()
	})

	g.Go(func() error {
		<-gctx.Done()
		return conn.Shutdown()
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		rootLog.Info("Received shutdown signal")
		time.AfterFunc(forcedExitTimeout, func() {
			rootLog.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	err = g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		rootLog.Info("Shutdown complete")
		return nil
	}
	return err
}

// openSinks opens every enabled sink. On failure the sinks opened so far
// are closed.
func openSinks(ctx context.Context, cfg config.SinksConfig, log *logger.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(err error) ([]sink.Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if n := cfg.NATS; n != nil && n.Enabled {
		s, err := sink.DialNATS(n.URL, n.SubjectPrefix)
		if err != nil {
			return fail(err)
		}
		log.Info("NATS sink enabled", "subject_prefix", n.SubjectPrefix)
		sinks = append(sinks, s)
	}
	if p := cfg.Postgres; p != nil && p.Enabled {
		s, err := sink.OpenPostgres(ctx, p.URL, p.Table)
		if err != nil {
			return fail(err)
		}
		log.Info("Postgres sink enabled", "table", p.Table)
		sinks = append(sinks, s)
	}
	if f := cfg.File; f != nil && f.Enabled {
		s, err := sink.OpenFile(f.Path)
		if err != nil {
			return fail(err)
		}
		log.Info("File sink enabled", "path", f.Path)
		sinks = append(sinks, s)
	}
	return sinks, nil
}
