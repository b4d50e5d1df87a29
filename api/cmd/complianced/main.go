package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/assess/gemini"
	"labelcheck/api/internal/assess/openai"
	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/config"
	"labelcheck/api/internal/entity"
	"labelcheck/api/internal/fields"
	"labelcheck/api/internal/handle"
	"labelcheck/api/internal/logger"
	"labelcheck/api/internal/notify"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/ocr/vision"
	"labelcheck/api/internal/ocr/yandex"
	"labelcheck/api/internal/rules"
	"labelcheck/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		ServiceName: "complianced",
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("complianced stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info("connecting to database", zap.String("dsn", config.SafeDSNSummary(cfg.DatabaseURL)))
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}

	products := store.NewProductRepo(db)
	validations := store.NewValidationRepo(db)
	entities := store.NewEntityRepo(db)

	ocrEngines := &ocr.Engines{
		Vision: vision.New(cfg.VisionAPIKey),
		Yandex: yandex.New(cfg.YCOAuthToken, cfg.YCFolderID),
	}
	rec, err := ocrEngines.Get(cfg.OCREngine)
	if err != nil {
		return err
	}

	breaker := assess.BreakerSettings{MaxFailures: 5, Cooldown: 30 * time.Second}
	aiEngines := &assess.Engines{
		Gemini: assess.WithBreaker(gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel), breaker, lg),
		OpenAI: assess.WithBreaker(openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel), breaker, lg),
	}
	ai, err := aiEngines.Get(cfg.AIEngine)
	if err != nil {
		return err
	}

	var extra []compliance.Option
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, "", cfg.TelegramChatID, lg)
		if err != nil {
			// Alerts are optional; validation keeps working without them.
			lg.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			extra = append(extra, compliance.WithNotifier(tg))
		}
	}

	extractor := fields.New()
	ruleEngine := rules.NewDefault()
	svc := compliance.New(
		store.Compliance{Products: products, Validations: validations},
		rec, ai, ruleEngine, extractor,
		compliance.Options{
			Threshold:              cfg.ComplianceThreshold,
			OCRConfidenceThreshold: cfg.OCRConfidenceThreshold,
			MaxImages:              cfg.MaxImagesPerProduct,
			Workers:                cfg.OCRWorkers,
			OCRTimeout:             cfg.OCRTimeout,
			AITimeout:              cfg.AITimeout,
		},
		lg, extra...,
	)

	agg := entity.NewAggregator(store.Entities{Products: products, Entities: entities}, lg)
	if cfg.EntityRefreshCron != "" {
		if err := agg.Schedule(cfg.EntityRefreshCron, 10*time.Minute); err != nil {
			return err
		}
		defer agg.Stop()
	}

	h := handle.New(handle.Deps{
		Validator: svc,
		Refresher: agg,
		Reports:   store.Reports{ValidationRepo: validations, Products: products, Threshold: svc.Options().Threshold},
		Entities:  entities,
		DB:        db,
		Extractor: extractor,
		Rules:     ruleEngine,
		Log:       lg,
	})
	mux := http.NewServeMux()
	h.Routes(mux)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		lg.Info("complianced listening",
			zap.String("addr", srv.Addr),
			zap.String("ocr_engine", rec.Name()),
			zap.String("ai_engine", ai.Name()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
