package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	xfeed "github.com/anatolykoptev/go-xfeed"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const maxFeedCount = 100

// sessionHeader lets a caller pass its own session token instead of the
// server's stored session.
const sessionHeader = "X-Session-Token"

type feedFetcher interface {
	FetchFollowingTimeline(ctx context.Context, req xfeed.TimelineRequest) (*xfeed.TimelineBatch, error)
}

// metrics are the counters exposed on /metrics.
type metrics struct {
	apiCalls *prometheus.CounterVec
	feed     *prometheus.CounterVec
	latency  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xfeed_api_requests_total",
			Help: "Timeline API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		feed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xfeed_feed_requests_total",
			Help: "GET /feed requests by error category.",
		}, []string{"category"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xfeed_feed_duration_seconds",
			Help:    "GET /feed latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.apiCalls, m.feed, m.latency)
	return m
}

// hook feeds ClientConfig.MetricsHook.
func (m *metrics) hook(endpoint string, success, rateLimited bool) {
	outcome := "ok"
	switch {
	case rateLimited:
		outcome = "rate_limited"
	case !success:
		outcome = "error"
	}
	m.apiCalls.WithLabelValues(endpoint, outcome).Inc()
}

// newRouter wires /feed, /metrics and /healthz.
func newRouter(f feedFetcher, m *metrics, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/feed", feedHandler(f, m)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	return r
}

// feedCount parses ?count=, clamped to 1..100. Missing or invalid values give
// the default page size.
func feedCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return xfeed.DefaultCount
	}
	return min(max(n, 1), maxFeedCount)
}

func feedHandler(f feedFetcher, m *metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { m.latency.Observe(time.Since(start).Seconds()) }()

		q := r.URL.Query()
		batch, err := f.FetchFollowingTimeline(r.Context(), xfeed.TimelineRequest{
			Count:        feedCount(q.Get("count")),
			Cursor:       q.Get("cursor"),
			CookieString: r.Header.Get(sessionHeader),
		})
		if err != nil {
			category := xfeed.Classify(err)
			m.feed.WithLabelValues(category.String()).Inc()
			slog.Warn("feed request failed", slog.String("category", category.String()), slog.Any("error", err))
			writeJSON(w, statusFor(err), map[string]string{
				"error":    xfeed.UserMessage(err),
				"category": category.String(),
			})
			return
		}
		m.feed.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, batch)
	}
}

func statusFor(err error) int {
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	switch xfeed.Classify(err) {
	case xfeed.CategoryExpiredSession:
		return http.StatusUnauthorized
	case xfeed.CategoryConnectivity:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("error", err))
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the timeline as JSON over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			if addr == "" {
				addr = ":8080"
			}

			reg := prometheus.NewRegistry()
			m := newMetrics(reg)
			c, done, err := a.client(m.hook)
			if err != nil {
				return err
			}
			defer done()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(c, m, reg),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", slog.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			slog.Info("shutting down")
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	return cmd
}
