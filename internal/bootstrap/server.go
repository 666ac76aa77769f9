package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/appleboy/graceful"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// startWithGracefulShutdown runs the server and the background jobs until
// a shutdown signal arrives.
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addGaugeUpdateJob(m, app)
	addExpiredRequestPurgeJob(m, app)

	addServerShutdownJob(m, app.Server)
	addCacheShutdownJob(m, app)
	addRedisClientShutdownJob(m, app)

	<-m.Done()
}

func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addGaugeUpdateJob periodically refreshes the fleet gauges from the
// store.
func addGaugeUpdateJob(m *graceful.Manager, app *Application) {
	if !app.Config.MetricsEnabled || !app.Config.MetricsGaugeUpdateEnabled {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(app.Config.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		updateGauges(app.DB, app.MetricsRecorder)
		for {
			select {
			case <-ticker.C:
				updateGauges(app.DB, app.MetricsRecorder)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addExpiredRequestPurgeJob bounds device-auth storage growth. This is a
// hygiene job only; expired records already fail exchange lazily.
func addExpiredRequestPurgeJob(m *graceful.Manager, app *Application) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(app.Config.DeviceAuthExpiration)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				app.DeviceAuthService.PurgeExpired()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

func addCacheShutdownJob(m *graceful.Manager, app *Application) {
	m.AddShutdownJob(func() error {
		if err := app.ConfigCache.Close(); err != nil {
			log.Printf("Error closing config cache: %v", err)
			return err
		}
		return nil
	})
}

func addRedisClientShutdownJob(m *graceful.Manager, app *Application) {
	if app.RateLimitRedisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := app.RateLimitRedisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		return nil
	})
}

func updateGauges(db metrics.GaugeStore, m metrics.Recorder) {
	if unclaimed, err := db.CountUnclaimedInstallations(); err != nil {
		log.Printf("Failed to count unclaimed installations: %v", err)
	} else {
		m.SetUnclaimedInstallationsCount(int(unclaimed))
	}

	if pending, err := db.CountPendingDeviceAuthRequests(); err != nil {
		log.Printf("Failed to count pending device auth requests: %v", err)
	} else {
		m.SetPendingDeviceAuthCount(int(pending))
	}
}
