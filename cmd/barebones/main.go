package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barebones/internal/app"
	"barebones/internal/core/config"
	"barebones/internal/core/database"
	"barebones/internal/core/logger"
	"barebones/internal/core/snowflake"
	"barebones/internal/repository"
	"barebones/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:  "barebones",
		Usage: "Forum core server and maintenance tools",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: ".", Usage: "directory holding config.yaml"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			repairCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, cmd.String("config"), false)
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "barebones: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, cmd.String("config"), cmd.Bool("migrate"))
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := bootstrap(cmd.String("config"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer database.Close()
			if err := database.Migrate(ctx, database.Get(), cfg.Database.Driver); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func repairCommand() *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "Recount every topic and forum counter from stored rows",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := bootstrap(cmd.String("config"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer database.Close()
			walker := service.NewWalker(cfg.Forum.OrphanPolicy)
			topics, forums, err := walker.Repair(ctx, repository.NewStore(database.Get()))
			if err != nil {
				return fmt.Errorf("repair: %w", err)
			}
			fmt.Printf("recounted %d topics and %d forums\n", topics, forums)
			return nil
		},
	}
}

// bootstrap 加载配置, 初始化 Logger, Snowflake 与数据库
func bootstrap(configPath string) (*config.Config, error) {
	if err := config.Init(configPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := snowflake.Init(&cfg.Snowflake); err != nil {
		return nil, fmt.Errorf("init snowflake: %w", err)
	}
	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context, configPath string, migrate bool) error {
	cfg, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	logger.Info("Starting barebones...")

	if migrate {
		if err := database.Migrate(ctx, database.Get(), cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Redis (L2 Cache + flood gate)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	a, err := app.New(ctx, cfg, database.Get(), redisClient)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.App.GetServerAddr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Graceful shutdown (优雅关闭)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server exited gracefully")
	return nil
}
