package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remarknews/api"
	"remarknews/kafka"
	"remarknews/orchestrator"
	"remarknews/runlock"

	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr     string
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the optional schedule and the Kafka trigger consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			cfg.ApplyFormatOverride()

			runner, err := orchestrator.Build(cfg)
			if err != nil {
				return err
			}
			lock, closeLock, err := runlock.New(cfg.Service, cfg.RunTimeout)
			if err != nil {
				return err
			}
			defer closeLock()

			client := orchestrator.NewHTTPClient(cfg)
			server := api.NewServer(api.Options{
				Runner:    runner,
				Lock:      lock,
				Feeds:     orchestrator.NewFetcher(cfg, client),
				Extractor: orchestrator.NewExtractor(cfg, client),
			})
			if err := server.Start(addr); err != nil {
				return err
			}
			if schedule != "" {
				if err := server.StartCron(schedule); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(cfg.Service.KafkaBrokers) > 0 {
				consumer, err := newTriggerConsumer(server, cfg.Service.KafkaBrokers, cfg.Service.KafkaTopic, cfg.Service.KafkaGroupID)
				if err != nil {
					slog.Error("kafka consumer disabled", "error", err)
				} else if err := consumer.Start(ctx); err != nil {
					slog.Error("kafka consumer failed to start", "error", err)
					consumer.Close()
				} else {
					defer consumer.Close()
				}
			}

			slog.Info("remarknews service ready", "addr", addr, "cron", schedule, "sources", len(cfg.EnabledSources()))
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&schedule, "cron", "", "cron schedule for automated runs, e.g. \"0 6 * * *\"")
	return cmd
}

// newTriggerConsumer starts a run for each valid RunRequest on topic. A
// request arriving while a run is in progress is dropped.
func newTriggerConsumer(server *api.Server, brokers []string, topic, groupID string) (*kafka.Consumer, error) {
	handler := &kafka.TypedMessageHandler[kafka.RunRequest]{
		Validate: (*kafka.RunRequest).Valid,
		Process: func(ctx context.Context, msg *kafka.RunRequest) error {
			id, err := server.Trigger(msg.Format, msg.Hours, "kafka")
			switch {
			case errors.Is(err, runlock.ErrLocked):
				slog.Info("run request dropped: a run is in progress", "request_id", msg.RequestID)
				return nil
			case errors.Is(err, api.ErrBadRequest):
				slog.Warn("run request rejected", "request_id", msg.RequestID, "error", err)
				return nil
			case err != nil:
				return err
			}
			slog.Info("run request accepted", "request_id", msg.RequestID, "run_id", id)
			return nil
		},
		AlwaysMark: true,
	}
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
		Handler: handler,
	})
}
