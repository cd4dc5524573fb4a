package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"carpool-service/internal/carbon"
	"carpool-service/internal/config"
	"carpool-service/internal/notify"
	"carpool-service/internal/rides"
	"carpool-service/internal/users"
	"carpool-service/migrations"
	"carpool-service/pkg/db"
	"carpool-service/pkg/jwt"
	"carpool-service/pkg/kafka"
	"carpool-service/pkg/logging"
	rredis "carpool-service/pkg/redis"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadServer()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// ── 1. JWT secret ──
	if err := jwt.Init(cfg.JWTSecret); err != nil {
		logrus.Fatal(err)
	}

	// ── 2. PostgreSQL ──
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal(err)
	}
	defer database.Close()

	if err := database.RunMigrations(ctx, migrations.FS); err != nil {
		logrus.WithError(err).Fatal("migrations failed")
	}

	// ── 3. Redis ──
	redisClient, err := rredis.NewClient(cfg.RedisAddr)
	if err != nil {
		logrus.Fatal(err)
	}
	defer redisClient.Close()

	// ── 4. Kafka ──
	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	defer kafkaClient.Close()

	if err := kafkaClient.EnsureTopics(ctx,
		kafka.TopicRideDeleted,
		kafka.TopicRideJoined,
		kafka.TopicProfileUpdated,
	); err != nil {
		logrus.Fatal(err)
	}

	// ── 5. Services ──
	rideSvc := rides.NewService(database.Pool, kafkaClient)
	userSvc := users.NewService(database.Pool, rideSvc, kafkaClient)
	carbonSvc := carbon.NewService(carbon.NewPGTripStore(database.Pool), redisClient)

	// ── 6. Background consumers ──
	carbonSvc.StartInvalidationConsumer(ctx, kafkaClient)

	// ── 7. WebSocket hub ──
	hub := notify.NewHub(cfg.CORSAllowedOrigins)
	hub.StartRideDeletedConsumer(ctx, kafkaClient)

	// ── 8. HTTP router ──
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(jwt.OptionalAuth)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"carpool-service"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/users", users.NewHandler(userSvc, carbonSvc).Routes())
		r.Mount("/rides", rides.NewHandler(rideSvc).Routes())
	})
	r.Mount("/ws", hub.Routes())

	// ── 9. Start server ──
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logrus.WithField("port", cfg.Port).Info("carpool-service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal(err)
		}
	}()

	// ── 10. Graceful shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
	cancel() // stop consumers
}
