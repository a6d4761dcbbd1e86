package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"

	"github.com/doggyhole/doggyhole-go/hub"
)

func serveCmd() *cobra.Command {
	var (
		addr                    string
		tokens                  []string
		logLevel                string
		maxConnections          int
		heartbeatInterval       time.Duration
		heartbeatTimeout        time.Duration
		gracefulShutdownTimeout time.Duration
		rateLimitRPS            float64
		rateLimitBurst          int
		noRateLimit             bool
		allowAllOrigins         bool
		mongoURI                string
		mongoDB                 string
		mongoCollection         string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := buildStore(cmd.Context(), mongoURI, mongoDB, mongoCollection, tokens)
			if err != nil {
				return err
			}
			defer closeStore()

			cfg := hub.DefaultServerConfig(addr, store)
			cfg.LogLevel = logLevel
			cfg.MaxConnections = maxConnections
			cfg.HeartbeatInterval = heartbeatInterval
			cfg.HeartbeatTimeout = heartbeatTimeout
			cfg.GracefulShutdownTimeout = gracefulShutdownTimeout
			if noRateLimit {
				cfg.RateLimit = hub.NoRateLimit()
			} else {
				cfg.RateLimit.MessagesPerSecond = rate.Limit(rateLimitRPS)
				cfg.RateLimit.Burst = rateLimitBurst
			}
			if allowAllOrigins {
				cfg.CheckOrigin = hub.AllOrigins()
			}
			cfg.Notifier = &consoleNotifier{}

			srv := hub.NewServer(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			printBanner()
			fmt.Printf("  %s listening on %s (log-level=%s)\n\n", color.GreenString("✓"), addr, logLevel)

			<-ctx.Done()
			fmt.Println(color.YellowString("\nshutting down..."))

			stopCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout+5*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringArrayVar(&tokens, "token", nil, "name=token credential, repeatable (ignored when --mongo-uri is set)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "one of error, warn, info, debug")
	cmd.Flags().IntVar(&maxConnections, "max-connections", 1000, "reject new connections past this count, 0 disables the limit")
	cmd.Flags().DurationVar(&heartbeatInterval, "heartbeat-interval", time.Second, "period of the server's heartbeat probe and liveness sweep")
	cmd.Flags().DurationVar(&heartbeatTimeout, "heartbeat-timeout", 3*time.Second, "evict a session after this long without a heartbeat_response")
	cmd.Flags().DurationVar(&gracefulShutdownTimeout, "graceful-shutdown-timeout", 5*time.Second, "grace period between the shutdown frame and a hard close")
	cmd.Flags().Float64Var(&rateLimitRPS, "rate-limit-rps", 100, "per-session inbound frames/second")
	cmd.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", 200, "per-session inbound frame burst")
	cmd.Flags().BoolVar(&noRateLimit, "no-rate-limit", false, "disable per-session rate limiting")
	cmd.Flags().BoolVar(&allowAllOrigins, "allow-all-origins", false, "disable WebSocket origin checking (development only)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string for credential storage; empty uses --token pairs in memory")
	cmd.Flags().StringVar(&mongoDB, "mongo-db", "doggyhole", "MongoDB database name")
	cmd.Flags().StringVar(&mongoCollection, "mongo-collection", "credentials", "MongoDB collection name")

	return cmd
}

// buildStore returns the credential store for the flags given, plus a
// cleanup func to disconnect any backing Mongo client.
func buildStore(ctx context.Context, mongoURI, mongoDB, mongoCollection string, tokens []string) (hub.CredentialStore, func(), error) {
	if mongoURI == "" {
		store := hub.NewMemoryCredentialStore()
		for _, pair := range tokens {
			name, token, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, nil, fmt.Errorf("--token %q: want name=token", pair)
			}
			store.Set(name, token)
		}
		return store, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	coll := client.Database(mongoDB).Collection(mongoCollection)
	return hub.NewMongoCredentialStore(coll), func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(disconnectCtx)
	}, nil
}

// consoleNotifier prints colorized connection lifecycle lines to stdout.
type consoleNotifier struct{}

func (consoleNotifier) ClientConnected(name string) {
	fmt.Printf("  %s %s connected\n", color.GreenString("+"), name)
}

func (consoleNotifier) ClientDisconnected(name string) {
	fmt.Printf("  %s %s disconnected\n", color.YellowString("-"), name)
}

func (consoleNotifier) ClientTimeout(name string) {
	fmt.Printf("  %s %s timed out\n", color.RedString("!"), name)
}

func (consoleNotifier) Error(err error) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.RedString("error:"), err)
}

func (consoleNotifier) Closed() {
	fmt.Println(color.CyanString("  server closed"))
}
