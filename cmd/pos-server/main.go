package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile/pos-backend-go/internal/api"
	"github.com/stockpile/pos-backend-go/internal/pos/checkout"
	"github.com/stockpile/pos-backend-go/internal/pos/store"
	"github.com/stockpile/pos-backend-go/pkg/kafka"
	"github.com/stockpile/pos-backend-go/pkg/metrics"
	"github.com/stockpile/pos-backend-go/pkg/outbox"
)

type cfg struct {
	Port               string
	DatabaseURL        string
	KafkaBrokers       string
	AppEnv             string
	OutboxPollInterval time.Duration
}

func readCfg() (cfg, error) {
	port := getenv("PORT", "8080")
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	pollMS, _ := strconv.Atoi(getenv("OUTBOX_POLL_INTERVAL_MS", "1000"))

	return cfg{
		Port:               port,
		DatabaseURL:        db,
		KafkaBrokers:       getenv("KAFKA_BROKERS", ""),
		AppEnv:             getenv("APP_ENV", "production"),
		OutboxPollInterval: time.Duration(pollMS) * time.Millisecond,
	}, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	pg := store.NewPostgres(pool)
	engine := checkout.NewEngine(pg)
	srvMetrics := metrics.NewServerMetrics("pos_server")
	server := api.NewServer(pg, engine, srvMetrics, strings.EqualFold(cfg.AppEnv, "development"))

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		relay := &outbox.Relay{
			Pool:     pool,
			Kafka:    kafkaClient,
			Interval: cfg.OutboxPollInterval,
			Service:  "pos_server",
		}
		go relay.Run(context.Background())
		defer kafkaClient.Close()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("pos-server listening on :%s (kafka=%v)", cfg.Port, kafkaClient.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
