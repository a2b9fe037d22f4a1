package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/auth"
	"github.com/Freyaaa001/ai-ppt-generator/internal/config"
	"github.com/Freyaaa001/ai-ppt-generator/internal/database"
	"github.com/Freyaaa001/ai-ppt-generator/internal/gateway"
	"github.com/Freyaaa001/ai-ppt-generator/internal/generation"
	"github.com/Freyaaa001/ai-ppt-generator/internal/logging"
	"github.com/Freyaaa001/ai-ppt-generator/internal/server"
	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ppt-api",
		Short: "AI presentation generation backend service",
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
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("model-base-url", defaults.GetString("model.base_url"), "Model service base URL (empty for SDK default)")
	cmd.PersistentFlags().String("model-primary", defaults.GetString("model.primary"), "Primary text model")
	cmd.PersistentFlags().String("model-fallback", defaults.GetString("model.fallback"), "Fallback text model")
	cmd.PersistentFlags().String("model-image", defaults.GetString("model.image"), "Image model")
	cmd.PersistentFlags().Int("model-timeout-seconds", defaults.GetInt("model.timeout_seconds"), "Per-request model timeout in seconds")
	cmd.PersistentFlags().Int("batch-pacing-ms", defaults.GetInt("batch.pacing_ms"), "Wait between batch items in milliseconds")
	cmd.PersistentFlags().Int("batch-retry-delay-ms", defaults.GetInt("batch.retry_delay_ms"), "Base retry delay for asset calls in milliseconds")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "model.base_url", "model-base-url")
	bindFlag(cmd, "model.primary", "model-primary")
	bindFlag(cmd, "model.fallback", "model-fallback")
	bindFlag(cmd, "model.image", "model-image")
	bindFlag(cmd, "model.timeout_seconds", "model-timeout-seconds")
	bindFlag(cmd, "batch.pacing_ms", "batch-pacing-ms")
	bindFlag(cmd, "batch.retry_delay_ms", "batch-retry-delay-ms")
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

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "ppt-auth",
		Audience:      "ppt-api",
		TokenTTL:      appConfig.SessionTTL,
	})
	credentials := auth.NewCredentialRegistry()

	modelClient := gateway.NewClient(gateway.ClientConfig{
		BaseURL:   appConfig.ModelBaseURL,
		Timeout:   appConfig.ModelTimeout,
		PingModel: appConfig.FallbackModel,
		Logger:    logging.ForComponent(logger, "gateway"),
	})
	textTiers := []gateway.Tier{
		{Name: "primary", Model: appConfig.PrimaryModel},
		{Name: "fallback", Model: appConfig.FallbackModel},
	}

	deckService, err := slides.NewService(slides.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: slides.NewUUIDProvider(),
		Logger:     logging.ForComponent(logger, "slides"),
	})
	if err != nil {
		return err
	}

	outlineGenerator, err := generation.NewOutlineGenerator(generation.OutlineGeneratorConfig{
		Client: modelClient,
		Tiers:  textTiers,
		IDs:    slides.NewUUIDProvider(),
		Logger: logging.ForComponent(logger, "outline"),
	})
	if err != nil {
		return err
	}

	assetGenerator, err := generation.NewAssetGenerator(generation.AssetGeneratorConfig{
		Client:         modelClient,
		ImageModel:     appConfig.ImageModel,
		RetryBaseDelay: appConfig.RetryBaseDelay,
		Logger:         logging.ForComponent(logger, "assets"),
	})
	if err != nil {
		return err
	}

	refiner, err := generation.NewRefiner(generation.RefinerConfig{
		Client: modelClient,
		Tiers:  textTiers,
		Logger: logging.ForComponent(logger, "refine"),
	})
	if err != nil {
		return err
	}

	realtime := server.NewRealtimeDispatcher()
	batchRunner, err := generation.NewRunner(generation.RunnerConfig{
		Assets: assetGenerator,
		Pacing: appConfig.BatchPacing,
		Events: generation.BatchEvents{
			Progress: func(deckID string, progress generation.BatchProgress) {
				publishBatchEvent(deckService, realtime, deckID, server.RealtimeEventBatchProgress, progress)
			},
			SlideResolved: func(deckID string, record slides.SlideRecord) {
				publishBatchEvent(deckService, realtime, deckID, server.RealtimeEventSlideChanged, record)
			},
		},
		Logger: logging.ForComponent(logger, "batch"),
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Gateway:     modelClient,
		Tokens:      tokenManager,
		Credentials: credentials,
		Decks:       deckService,
		Outline:     outlineGenerator,
		Assets:      assetGenerator,
		Refiner:     refiner,
		Batch:       batchRunner,
		IDs:         slides.NewUUIDProvider(),
		Realtime:    realtime,
		Logger:      logging.ForComponent(logger, "http"),
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

// publishBatchEvent resolves the deck's workspace so batch callbacks reach the
// right subscribers. A deck deleted mid-run simply stops emitting events.
func publishBatchEvent(decks *slides.Service, realtime *server.RealtimeDispatcher, deckID, eventType string, payload interface{}) {
	deck, err := decks.GetDeck(context.Background(), deckID)
	if err != nil {
		return
	}
	realtime.Publish(server.RealtimeMessage{
		WorkspaceID: deck.WorkspaceID,
		EventType:   eventType,
		DeckID:      deckID,
		Payload:     payload,
	})
}
