package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/amass-me/locale-engine/internal/api"
	"github.com/amass-me/locale-engine/internal/geo"
	"github.com/amass-me/locale-engine/internal/httpclient"
	"github.com/amass-me/locale-engine/internal/jobs"
	"github.com/amass-me/locale-engine/internal/market"
	"github.com/amass-me/locale-engine/internal/publisher"
	"github.com/amass-me/locale-engine/internal/rate"
	internalsecrets "github.com/amass-me/locale-engine/internal/secrets"
	"github.com/amass-me/locale-engine/internal/site"
	"github.com/amass-me/locale-engine/internal/store"
	"github.com/amass-me/locale-engine/pkg/config"
	"github.com/amass-me/locale-engine/pkg/logger"
	"github.com/amass-me/locale-engine/pkg/model"
	"github.com/amass-me/locale-engine/pkg/secrets"
	"github.com/amass-me/locale-engine/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [locale-engine]...")

	// --- Geo cache store ---
	var st store.Store
	switch cfg.GeoCacheBackend {
	case "redis":
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, "locale:", logger.Named("store"))
		if err != nil {
			logg.Fatalw("failed to init redis store", "error", err, "addr", cfg.RedisAddr)
		}
		st = rs
	default:
		fs, err := store.NewFile(cfg.GeoCachePath, logger.Named("store"))
		if err != nil {
			logg.Fatalw("failed to init file store", "error", err, "path", cfg.GeoCachePath)
		}
		st = fs
	}

	// --- Markets ---
	if cfg.MarketsErr != nil {
		logg.Fatalw("invalid market configuration", "error", cfg.MarketsErr)
	}
	reg, err := market.NewRegistry(cfg.Markets, cfg.DefaultMarket)
	if err != nil {
		logg.Fatalw("invalid market configuration", "error", err)
	}

	// --- Catalog: postgres, then file, then the embedded default ---
	var catalog market.Catalog
	switch {
	case cfg.CatalogDatabaseURL != "":
		logg.Info("loading catalog from DSN: ", utils.MaskDSN(cfg.CatalogDatabaseURL))
		catalog, err = market.OpenCatalogPG(ctx, cfg.CatalogDatabaseURL, reg)
	case cfg.CatalogPath != "":
		catalog, err = market.LoadCatalogFile(cfg.CatalogPath, reg)
	default:
		catalog, err = market.DefaultCatalog(reg)
	}
	if err != nil {
		logg.Fatalw("failed to load catalog", "error", err)
	}
	logg.Infow("catalog loaded", "entries", len(catalog))

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: float64(cfg.GeoRateLimit),
		Burst:             cfg.GeoRateLimit,
	})

	// --- Optional provider key from AWS Secrets Manager ---
	var keyFn geo.KeyFunc
	if cfg.GeoAPIKeySecret != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Warnw("failed to create AWS Secrets Manager provider; using anonymous geo access", "error", err)
		} else {
			keys := internalsecrets.NewKeyResolver(
				logger.Named("secrets"),
				cfg.Env,
				cfg.GeoAPIKeySecret,
				awsProvider,
				secrets.NewCache[string](cfg.SecretCacheTTL),
			)
			keyFn = keys.Key
		}
	}

	// --- Geo providers, tried in order ---
	httpClient := &http.Client{Timeout: cfg.GeoProviderTimeout}
	geoLog := logger.Named("geo")
	providers := []geo.Provider{
		geo.NewIPAPIProvider(httpclient.New(geoLog, rateMgr, httpClient, cfg.GeoRetryMax, "ipapi", nil), cfg.GeoPrimaryURL, keyFn),
		geo.NewIPWhoProvider(httpclient.New(geoLog, rateMgr, httpClient, cfg.GeoRetryMax, "ipwho", nil), cfg.GeoSecondaryURL),
	}

	// --- Connect to NATS (optional) ---
	var (
		nc  *nats.Conn
		pub *publisher.Publisher
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = publisher.New(nc, cfg.ServiceName, logger.Named("publisher"))
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; market and rotation events disabled")
	}

	// --- Geo service ---
	geoCache := geo.NewCache(st, cfg.GeoCacheTTL, geoLog)
	if err := geoCache.Restore(ctx); err != nil {
		logg.Warnw("failed to restore geo cache", "error", err)
	}

	opts := geo.Options{
		Fallback:        reg.Default(),
		Canonicalize:    reg.Canonical,
		ProviderTimeout: cfg.GeoProviderTimeout,
		LookupTimeout:   cfg.GeoLookupTimeout,
	}
	if pub != nil {
		opts.OnResolved = func(ctx context.Context, previous model.Market, res model.GeoLookupResult) {
			if previous.Equal(res.Market) {
				return
			}
			ev := model.MarketResolvedEvent{
				Code:      res.Market.Code,
				Name:      res.Market.DisplayName,
				Previous:  previous.Code,
				FetchedAt: res.FetchedAt,
			}
			if err := pub.PublishMarketResolved(ctx, ev); err != nil {
				geoLog.Sugar().Warnw("geo.publish_failed", "error", err, "market", ev.Code)
			}
		}
	}
	geoSvc := geo.NewService(providers, geoCache, opts, geoLog)

	resolver := market.NewResolver(reg, geoSvc, logger.Named("market"))

	// --- Rotating surfaces ---
	deps := site.Deps{
		Resolver: resolver,
		Catalog:  catalog,
		Logger:   logger.Named("site"),
	}
	if pub != nil {
		deps.Notifier = pub
	}
	surfaces, err := site.NewSurfaces(site.DefaultConfigs(cfg.FooterPageSize, cfg.ContactCap, cfg.RotationInterval), deps)
	if err != nil {
		logg.Fatalw("failed to init surfaces", "error", err)
	}
	surfaces.NavigateAll("/")

	// --- Geo cache warmer ---
	warmer := jobs.NewCacheWarmer(logger.Named("jobs"), geoSvc, cfg.GeoWarmInterval, cfg.GeoWarmInterval)
	go warmer.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	api.RegisterRoutes(app,
		api.Health{Store: st, Geo: geoSvc, NATS: nc},
		api.NewMarketHandler(logger.Named("api"), resolver, catalog, 0),
		api.NewSurfaceHandler(logger.Named("api"), surfaces),
	)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Main process stays alive until interrupted ---
	logg.Infow("[locale-engine] running",
		"env", cfg.Env,
		"default_market", reg.Default().Code,
		"markets", len(reg.Markets()),
		"cache_backend", cfg.GeoCacheBackend,
		"nats", cfg.NATSURL != "")

	<-ctx.Done()
	logg.Info("shutting down [locale-engine]...")

	warmer.Stop()
	surfaces.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
