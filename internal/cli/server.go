package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quizboard-service/internal/config"
	"quizboard-service/internal/game"
	filerepo "quizboard-service/internal/infra/file"
	"quizboard-service/internal/infra/memory"
	pgrepo "quizboard-service/internal/infra/postgres"
	redisrepo "quizboard-service/internal/infra/redis"
	transport "quizboard-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	quizDir := cfg.Quizzes.Dir
	if quizDir == "" {
		quizDir = "quizzes"
	}
	var loader memory.QuizLoader = filerepo.NewQuizRepository(quizDir)
	if pool != nil {
		loader = pgrepo.NewQuizRepository(pool)
	}

	quizTTL := config.Duration(cfg.Quizzes.TTL, 10*time.Minute)
	var quizRepo game.QuizRepository
	if redisClient != nil {
		redisTTL := config.Duration(cfg.Redis.TTL, quizTTL)
		quizRepo = redisrepo.NewQuizRepository(redisClient, loader, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	engine := game.NewEngine(game.Config{
		GamemasterName: cfg.Game.Gamemaster,
		QuestionSplash: config.Duration(cfg.Game.QuestionSplash, 15*time.Second),
		PlayerAnswer:   config.Duration(cfg.Game.PlayerAnswer, 10*time.Second),
		AudioClips:     cfg.Audio.Clips,
	}, quizRepo, clockwork.NewRealClock())

	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	go engine.Run(engineCtx)

	wsHandler := transport.NewWSHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/quizzes", transport.NewQuizListHandler(quizRepo))
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting game server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
