package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/backup"
	"github.com/dukerupert/zenith/internal/config"
	"github.com/dukerupert/zenith/internal/database"
	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/logging"
	"github.com/dukerupert/zenith/internal/middleware"
	"github.com/dukerupert/zenith/internal/push"
	"github.com/dukerupert/zenith/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, logging.FileConfig{Path: cfg.LogFile})

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, redisClient, err := openBus(ctx, cfg.Bus, logger)
	if err != nil {
		log.Fatalf("failed to open change bus: %v", err)
	}
	defer bus.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		log.Fatalf("failed to create token verifier: %v", err)
	}

	model, closeModel, err := openModel(ctx, cfg.AI, logger)
	if err != nil {
		log.Fatalf("failed to create ai model: %v", err)
	}
	defer closeModel()

	var limiter middleware.Limiter
	memLimiter := middleware.NewRateLimiter()
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, "zenith:ratelimit:")
	} else {
		limiter = memLimiter
	}

	srv := server.New(db, server.Options{
		Bus:             bus,
		Verifier:        verifier,
		Model:           model,
		Limiter:         limiter,
		AILimit:         cfg.RateLimit.AIRequests,
		AIWindow:        cfg.RateLimit.AIWindow,
		Linger:          2 * time.Minute,
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		VAPIDSubscriber: cfg.Push.Subscriber,
		Backup: backup.Config{
			Endpoint:   cfg.Backup.Endpoint,
			Bucket:     cfg.Backup.Bucket,
			Region:     cfg.Backup.Region,
			AccessKey:  cfg.Backup.AccessKey,
			SecretKey:  cfg.Backup.SecretKey,
			Passphrase: cfg.Backup.Passphrase,
		},
		Location: loc,
	}, logger)

	srv.PushScheduler().Start(ctx)

	// Housekeeping jobs
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	if _, err := cron.Every(5).Minutes().Do(memLimiter.Cleanup); err != nil {
		log.Fatalf("failed to schedule limiter cleanup: %v", err)
	}
	if _, err := cron.Every(1).Day().At("03:00").Do(func() {
		if err := srv.PushStore().CleanupSent(time.Now().AddDate(0, 0, -7)); err != nil {
			logger.Error("failed to clean up sent reminders", "error", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule reminder cleanup: %v", err)
	}
	cron.StartAsync()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second, // ai actions wait on the model
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("zenith running", "addr", "http://localhost:"+cfg.Port, "ai", model != nil, "bus", cfg.Bus.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	cron.Stop()
	srv.PushScheduler().Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.Shutdown()
}

// openBus selects the change bus. The redis client is returned so the
// rate limiter can share it.
func openBus(ctx context.Context, cfg config.BusConfig, logger *slog.Logger) (live.Bus, *redis.Client, error) {
	busLogger := logger.With("component", "bus")
	switch cfg.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		bus, err := live.NewRedisBus(ctx, client, "", busLogger)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return bus, client, nil
	case "nats":
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("zenith"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		bus, err := live.NewNATSBus(conn, "", busLogger)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return bus, nil, nil
	default:
		return live.NewLocalBus(), nil, nil
	}
}

// openModel returns a nil model when the provider has no credentials.
func openModel(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (ai.Model, func(), error) {
	if !cfg.Configured() {
		logger.Warn("ai provider not configured, ai actions disabled", "provider", cfg.Provider)
		return nil, func() {}, nil
	}
	switch cfg.Provider {
	case "openai":
		return ai.NewOpenAICompatModel(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model), func() {}, nil
	default:
		m, err := ai.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.Model, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { m.Close() }, nil
	}
}

// runCommand handles the local tooling subcommands.
func runCommand(name string, args []string) error {
	switch name {
	case "vapid-keys":
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("ZENITH_VAPID_PUBLIC_KEY=%s\nZENITH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	case "token":
		if len(args) < 1 {
			return errors.New("usage: zenith token <user-id> [email]")
		}
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		v, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return err
		}
		email := ""
		if len(args) > 1 {
			email = args[1]
		}
		token, err := v.Sign(args[0], email, 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}
