// Package metrics exposes crawl counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "talkwatch"

// Candidate outcomes
const (
	OutcomeCreated   = "created"
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
)

var (
	// Registry holds every talkwatch collector
	Registry = prometheus.NewRegistry()

	CrawlCandidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_candidates_total",
		Help:      "Detail pages processed, by outcome",
	}, []string{"outcome"})

	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_errors_total",
		Help:      "Failed page fetches, by error kind",
	}, []string{"kind"})

	Enrichment = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_total",
		Help:      "Speaker lookups, by result",
	}, []string{"result"})

	PageCrawlDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "page_crawl_seconds",
		Help:      "Time spent crawling one monitored page",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Change notifications sent, by backend and result",
	}, []string{"backend", "result"})

	LastCrawlSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_crawl_timestamp_seconds",
		Help:      "Unix time of the last completed crawl of all pages",
	})
)

func init() {
	Registry.MustRegister(CrawlCandidates, FetchErrors, Enrichment, PageCrawlDuration, Notifications, LastCrawlSuccess)
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
