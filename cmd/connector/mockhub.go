package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Guliveer/livetiming-connector/internal/config"
	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/mockhub"
)

type mockHubOptions struct {
	*rootOptions
	addr           string
	messageLog     string
	interval       time.Duration
	keepAlive      time.Duration
	keepAliveEvery time.Duration
	fragmentSize   int
	loop           bool
	updates        int
}

func newMockHubCmd(root *rootOptions) *cobra.Command {
	opts := &mockHubOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "mockhub",
		Short: "Serve a recorded or synthetic live timing feed over SignalR",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return opts.run(ctx, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", constants.DefaultMockListenAddr, "Listen address")
	cmd.Flags().StringVar(&opts.messageLog, "message-log", "", "Replay this raw message log instead of a synthetic session")
	cmd.Flags().DurationVar(&opts.interval, "interval", constants.DefaultReplayInterval, "Delay between replayed messages")
	cmd.Flags().DurationVar(&opts.keepAlive, "keep-alive-timeout", constants.DefaultMockKeepAliveTimeout,
		"KeepAliveTimeout announced by negotiate (negative announces null)")
	cmd.Flags().DurationVar(&opts.keepAliveEvery, "keep-alive-every", 5*time.Second, "Send a keep-alive at this interval (0 disables)")
	cmd.Flags().IntVar(&opts.fragmentSize, "fragment-size", 0, "Split frames into continuation frames of this size")
	cmd.Flags().BoolVar(&opts.loop, "loop", false, "Restart the replay at the end of the log")
	cmd.Flags().IntVar(&opts.updates, "updates", 200, "Number of feed updates in the synthetic session")
	return cmd
}

func (o *mockHubOptions) run(ctx context.Context, cmd *cobra.Command) error {
	log, err := o.setupLogger(config.LogConfig{Level: "INFO"}, "mockhub")
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	logFlags(log, cmd.Flags())

	var lines []string
	if o.messageLog != "" {
		lines, err = mockhub.LoadLog(o.messageLog)
	} else {
		lines, err = mockhub.SampleSession(time.Now().UTC(), o.updates)
	}
	if err != nil {
		return err
	}

	srv := mockhub.New(mockhub.Config{
		ReplayInterval:   o.interval,
		KeepAliveTimeout: o.keepAlive,
		KeepAliveEvery:   o.keepAliveEvery,
		FragmentSize:     o.fragmentSize,
		Loop:             o.loop,
	}, lines, log)

	if err := srv.Run(ctx, o.addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
