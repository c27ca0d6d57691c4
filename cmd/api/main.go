package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"realty_site/internal/adapters/craft"
	server "realty_site/internal/adapters/http_server"
	"realty_site/internal/adapters/llm"
	"realty_site/internal/adapters/mailer"
	"realty_site/internal/adapters/observability"
	redisad "realty_site/internal/adapters/redis"
	"realty_site/internal/adapters/rex"
	"realty_site/internal/app"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
	mysqlrepo "realty_site/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// lead log (optional)
	var leads domain.LeadRepository = mysqlrepo.Noop{}
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		defer db.Close()
		log.Info().Msg("database connection ok")
		leads = mysqlrepo.New(db)
	} else {
		log.Warn().Msg("MYSQL_DSN not set, lead log disabled")
	}

	// content cache (optional)
	var cache domain.Cache = redisad.Noop{}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, cache calls will fail open")
		}
		defer rc.Close()
		cache = rc
	}

	// vendors
	listingsSrc := rex.New(rex.Options{
		Base:      cfg.RexBase,
		Token:     cfg.RexToken,
		Email:     cfg.RexEmail,
		Password:  cfg.RexPassword,
		AccountID: cfg.RexAccountID,
		RPS:       cfg.RexRPS,
	})
	contentSrc := craft.New(cfg.CraftBase, cfg.CraftToken)
	mail := mailer.New(cfg.MailBase, cfg.MailKey)
	chat := llm.New(cfg.ChatBase, cfg.ChatKey, cfg.ChatModel, cfg.ChatMaxTokens)

	// services
	retry := shared.NewRetrier(cfg.RetryMax, cfg.RetryBase)
	h := &server.Handlers{
		Listings: app.NewListingService(listingsSrc, retry, app.ListingOptionsFrom(cfg)),
		Content:  app.NewContentService(contentSrc, cache, retry, app.ContentOptionsFrom(cfg)),
		Leads:    app.NewLeadService(mail, leads, retry, app.LeadOptionsFrom(cfg)),
		Chat:     app.NewChatService(chat, retry, app.ChatOptionsFrom(cfg)),
	}

	// http
	srv := server.New(server.Options{
		FormRatePerMin: cfg.FormRatePerMin,
		ChatRatePerMin: cfg.ChatRatePerMin,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
