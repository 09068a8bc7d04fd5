// Package serve implements the serve command which runs the full
// prediction service: HTTP API, WebSocket hub and background publishers.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/foodlens/foodlens-go/internal/api"
	"github.com/foodlens/foodlens-go/internal/broadcast"
	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/datastore"
	"github.com/foodlens/foodlens-go/internal/inference"
	"github.com/foodlens/foodlens-go/internal/logging"
	"github.com/foodlens/foodlens-go/internal/mqtt"
	"github.com/foodlens/foodlens-go/internal/observability"
	"github.com/foodlens/foodlens-go/internal/processor"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prediction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), settings)
		},
	}

	cmd.PersistentFlags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port for the HTTP server")

	return cmd
}

func runServer(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("serve")

	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	datastore.SetMetrics(metrics.Datastore)
	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			log.Error("Failed to open prediction log, persistence disabled", "error", err)
			store = nil
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					log.Error("Failed to close prediction log", "error", err)
				}
			}()
		}
	}

	router := inference.NewRouter(settings)
	hub := broadcast.NewHub()
	hub.SetMetrics(metrics.Broadcast)

	var publisher mqtt.Client
	if settings.Realtime.MQTT.Enabled {
		publisher, err = mqtt.NewClient(settings, metrics.MQTT)
		if err != nil {
			log.Warn("MQTT publisher disabled", "error", err)
		} else {
			connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := publisher.Connect(connectCtx); err != nil {
				log.Warn("MQTT broker unreachable, continuing without publisher", "error", err)
			}
			cancel()
			defer publisher.Disconnect()
		}
	}

	proc := processor.New(settings, router, store, hub, publisher, metrics)
	controller := api.New(settings, store, proc, hub, metrics)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server",
			"port", settings.WebServer.Port,
			"mode", router.Mode())
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return controller.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
