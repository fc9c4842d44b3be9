package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/backend"
	_ "github.com/mohammed-shakir/autocomplete-gateway/internal/backend/bleveidx"
	_ "github.com/mohammed-shakir/autocomplete-gateway/internal/backend/elastic"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/cache/resultcache"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/server"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/logger"
	h3mapper "github.com/mohammed-shakir/autocomplete-gateway/internal/mapper/h3"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/metrics"
)

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	// flags override CONFIG_FILE and BACKEND
	configFlag := flag.String("config", "", "path to a YAML config file")
	backendFlag := flag.String("backend", "", "search backend ("+strings.Join(backend.Names(), "|")+")")
	flag.Parse()

	if *configFlag != "" {
		_ = os.Setenv("CONFIG_FILE", *configFlag)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		return 2
	}
	if *backendFlag != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*backendFlag))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "autocomplete",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	var mp *metrics.Provider
	if cfg.MetricsEnabled {
		mp = metrics.Init(metrics.Config{
			Enabled: true,
			Path:    cfg.MetricsPath,
			Build: metrics.BuildInfo{
				Version:   cfg.Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Backend:   cfg.Backend,
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(mp.Registerer())
	}
	observability.ExposeBuildInfo(cfg.Version)

	appLog.Info("starting autocomplete",
		"addr", cfg.Addr,
		"version", cfg.Version,
		"backend", cfg.Backend,
		"es", cfg.ESConnString)

	raw, err := backend.New(cfg.Backend, cfg, appLog)
	if err != nil {
		appLog.Error("backend setup failed", "err", err)
		return 1
	}
	search := backend.Guard(raw, cfg.Backend, cfg.BackendTimeout, backend.NewLimiter(cfg.BackendRPS, cfg.BackendBurst))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := redisstore.New(dialCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()

		mapr := h3mapper.New()
		rcache := resultcache.New(search, cache.WithOpTimeout(rc, cfg.CacheOpTimeout), mapr, appLog, resultcache.Config{
			TTL:              cfg.CacheTTL,
			H3Res:            cfg.H3Res,
			FeatureCacheSize: cfg.FeatureCacheSize,
			FeatureCacheTTL:  cfg.FeatureCacheTTL,
		})
		search = rcache
		appLog.Info("result cache enabled", "redis", cfg.RedisAddr, "ttl", cfg.CacheTTL, "h3_res", cfg.H3Res)

		if cfg.Invalidation.Enabled {
			cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, &zl, rcache, mapr, cfg.H3Res)
			go func() {
				if err := cons.Start(ctx); err != nil {
					appLog.Error("invalidation consumer stopped", "err", err)
				}
			}()
		}
	} else if cfg.Invalidation.Enabled {
		appLog.Warn("invalidation enabled without REDIS_ADDR; nothing to invalidate")
	}

	if err := server.Run(ctx, cfg, appLog, server.NewHandler(cfg, appLog, search, mp)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
