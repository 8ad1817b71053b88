package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"unihub/config"
	"unihub/middleware"
	"unihub/routes"
	"unihub/utils"
	"unihub/worker"
)

var rootCmd = &cobra.Command{
	Use:   "unihub",
	Short: "University events, teams and gallery backend",
	// Serve when no subcommand is given
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootstrap(); err != nil {
			return err
		}
		// ConnectDB migrates on connect
		if err := config.ConnectDB(); err != nil {
			return err
		}
		logrus.Info("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func bootstrap() error {
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.InitLogger(config.AppConfig.LogLevel, config.AppConfig.IsProduction())
	if err := utils.InitSentry(config.AppConfig.SentryDSN, config.AppConfig.Environment); err != nil {
		logrus.WithError(err).Warn("Sentry initialization failed")
	}
	return nil
}

func serve() error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer utils.FlushSentry()

	if err := config.ConnectDB(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	deps := routes.Dependencies{
		DB:               config.DB,
		Mailer:           utils.NewSMTPMailer(config.AppConfig.SMTP),
		Media:            utils.NewCloudinaryClient(config.AppConfig.Cloudinary),
		Hub:              utils.NewSeatHub(),
		RateLimitStorage: middleware.RateLimitStorage(config.AppConfig.Redis),
	}
	app := routes.NewApp(deps)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	janitor := worker.NewUploadJanitor(config.AppConfig.UploadTempDir, "media", "posterImage")
	go janitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
		errCh <- app.Listen(":" + config.AppConfig.ServerPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if sqlDB, err := config.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if closer, ok := deps.RateLimitStorage.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	logrus.Info("Server stopped")
	return nil
}
