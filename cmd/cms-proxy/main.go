package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/cms-content-client/internal/config"
	"github.com/Sternrassler/cms-content-client/pkg/cache"
	"github.com/Sternrassler/cms-content-client/pkg/client"
	"github.com/Sternrassler/cms-content-client/pkg/logging"
	"github.com/Sternrassler/cms-content-client/pkg/metrics"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// forwardedHeaders are upstream headers copied onto proxied responses.
var forwardedHeaders = []string{transport.HeaderTotal, transport.HeaderPerPage}

func main() {
	cfg, err := config.Load(getEnv("CMS_PROXY_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(cfg.Log)
	logger := logging.NewLogger("cms-proxy")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		redisClient, err = newRedisClient(cfg.Cache.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid Redis URL")
		}
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis", cfg.Cache.RedisURL).Msg("Connected to Redis")
	}

	tr, err := transport.NewHTTPTransport(cfg.Transport, logging.NewLogger("cms-transport"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transport")
	}

	cmsClient, err := client.New(clientConfig(cfg, tr, redisClient))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create CMS client")
	}
	defer cmsClient.Close()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(cmsClient, redisClient, cfg.Server.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("base_url", cfg.Transport.BaseURL).
		Str("strategy", cfg.Cache.Strategy).
		Bool("redis", redisClient != nil).
		Msg("Starting CMS proxy server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("CMS proxy stopped")
}

// clientConfig maps the proxy configuration onto the client. A nil
// redisClient selects the in-memory cache.
func clientConfig(cfg *config.Config, tr transport.Transport, redisClient *redis.Client) client.Config {
	cc := client.DefaultConfig(tr)
	cc.CacheTTL = cfg.Cache.TTL
	cc.CacheMaxEntries = cfg.Cache.MaxEntries
	cc.CacheDisabled = cfg.Cache.Disabled
	cc.CacheStrategy = cache.StrategyName(cfg.Cache.Strategy)
	cc.Throttle = cfg.Throttle
	if redisClient != nil {
		cc.Cache = cache.NewRedisProvider[client.Response](redisClient, cfg.Cache.RedisPrefix)
	}
	return cc
}

// newRedisClient accepts host:port or a redis:// URL.
func newRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func newRouter(cmsClient *client.Client, redisClient *redis.Client, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/cache/flush", flushHandler(cmsClient))
	mux.HandleFunc("/api/", apiHandler(cmsClient, timeout))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func flushHandler(cmsClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := cmsClient.FlushCache(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// apiHandler serves GET /api/<path> through the client pipeline. Query
// parameters in bracket notation are decoded into nested values.
func apiHandler(cmsClient *client.Client, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/")
		if path == "" {
			writeError(w, http.StatusNotFound, "missing api path")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, err := cmsClient.Get(ctx, path, transport.DecodeQuery(r.URL.Query()))
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("CMS request failed")
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		if res.Err != nil {
			status := res.Err.StatusCode
			if status == 0 {
				status = http.StatusBadGateway
			}
			writeError(w, status, res.Err.Message)
			return
		}

		for _, h := range forwardedHeaders {
			if v := res.Header.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		writeJSON(w, http.StatusOK, res.Data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("encode response: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
