package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myracetime/fitlink/internal/config"
	"github.com/myracetime/fitlink/internal/credentials"
	"github.com/myracetime/fitlink/internal/database"
	"github.com/myracetime/fitlink/internal/logging"
	"github.com/myracetime/fitlink/internal/providers"
	"github.com/myracetime/fitlink/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fitlink-api",
		Short: "Fitness provider connection and activity normalization service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("redirect-scheme", defaults.GetString("oauth.redirect_scheme"), "Custom URI scheme providers redirect to")
	cmd.PersistentFlags().Duration("provider-timeout", defaults.GetDuration("provider.timeout"), "Timeout for outbound provider calls")
	cmd.PersistentFlags().String("strava-client-id", defaults.GetString("strava.client_id"), "Strava OAuth client ID")
	cmd.PersistentFlags().String("fitbit-client-id", defaults.GetString("fitbit.client_id"), "Fitbit OAuth client ID")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "oauth.redirect_scheme", "redirect-scheme")
	bindFlag(cmd, "provider.timeout", "provider-timeout")
	bindFlag(cmd, "strava.client_id", "strava-client-id")
	bindFlag(cmd, "fitbit.client_id", "fitbit-client-id")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := credentials.NewStore(credentials.StoreConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	registry, err := providers.NewRegistry(providers.RegistryConfig{
		RedirectScheme: appConfig.RedirectScheme,
		Strava: providers.OAuthClient{
			ClientID:     appConfig.StravaClientID,
			ClientSecret: appConfig.StravaClientSecret,
		},
		Fitbit: providers.OAuthClient{
			ClientID:     appConfig.FitbitClientID,
			ClientSecret: appConfig.FitbitClientSecret,
		},
	})
	if err != nil {
		return err
	}

	states, err := providers.NewStateCodec(providers.StateCodecConfig{
		SigningSecret: []byte(appConfig.StateSigningSecret),
	})
	if err != nil {
		return err
	}

	// The mobile client drives the consent screen itself and posts the
	// redirect back, so the server runs without a session launcher.
	providerService, err := providers.NewService(providers.ServiceConfig{
		Registry:   registry,
		Store:      store,
		States:     states,
		HTTPClient: &http.Client{Timeout: appConfig.ProviderTimeout},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Providers: providerService,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
