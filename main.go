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

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"

	"caching-balancer/lru"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg *config) error {
	if err := setupLoggers(cfg.DebugLevel); err != nil {
		return err
	}

	pc, err := loadPool(cfg.ConfigFile)
	if err != nil {
		return err
	}

	var cache *lru.SyncCache[string, *CachedResponse]
	if pc.Cache {
		cache, err = lru.NewSync[string, *CachedResponse](pc.CacheSize)
		if err != nil {
			return fmt.Errorf("response cache: %w", err)
		}
		lbalLog.Infof("LRU cache enabled (capacity: %d)", pc.CacheSize)
	} else {
		lbalLog.Infof("Cache disabled")
	}

	proxy := NewProxy(NewPool(pc.Applications), cache, nil)
	servers := []*http.Server{{Addr: cfg.Listen, Handler: proxy}}

	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		if cache != nil {
			reg.MustRegister(newCacheCollector("loadbalancer", cache))
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler(reg))
		servers = append(servers, &http.Server{
			Addr:    cfg.MetricsListen,
			Handler: mux,
		})
		lbalLog.Infof("Prometheus exporter on %s/metrics",
			cfg.MetricsListen)
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("listen on %s: %w", srv.Addr,
					err)
			}
		}(srv)
	}
	lbalLog.Infof("Load balancer listening on %s, %v", cfg.Listen, proxy)

	var runErr error
	select {
	case <-ctx.Done():
		lbalLog.Infof("Received shutdown signal")
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lbalLog.Errorf("Shutdown of %s: %v", srv.Addr, err)
		}
	}

	return runErr
}
