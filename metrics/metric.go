package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnb-chain/blob-stats/logging"
)

const (
	ErrTypeSource  = "source"
	ErrTypeStore   = "store"
	ErrTypeAck     = "ack"
	ErrTypeQuery   = "query"
	shutdownPeriod = 5 * time.Second
)

var (
	SyncedBlockGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "synced_block_height",
		Help: "Highest block number whose blob transactions have been persisted.",
	})

	FinishedHeightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finished_height_acked",
		Help: "Last block height acknowledged back to the notification source.",
	})

	BlocksProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blocks_processed_total",
		Help: "Blocks applied from committed chain segments.",
	})

	BlocksRevertedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blocks_reverted_total",
		Help: "Blocks removed by reorgs or reverts.",
	})

	BlobTxsProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blob_txs_processed_total",
		Help: "Blob transactions persisted.",
	})

	BlobsProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blobs_processed_total",
		Help: "Blobs persisted.",
	})

	SenderRecoveryFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sender_recovery_failures_total",
		Help: "Blob transactions skipped because the sender could not be recovered.",
	})

	ErrorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Errors by type.",
	}, []string{"type"})

	NotificationDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notification_processing_duration_seconds",
		Help:    "Time spent applying one chain notification.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	APIRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Analytics API requests by route and status code.",
	}, []string{"route", "code"})

	MetricsItems = []prometheus.Collector{
		SyncedBlockGauge,
		FinishedHeightGauge,
		BlocksProcessedCounter,
		BlocksRevertedCounter,
		BlobTxsProcessedCounter,
		BlobsProcessedCounter,
		SenderRecoveryFailuresCounter,
		ErrorsCounter,
		NotificationDurationHistogram,
		APIRequestsCounter,
	}
)

type Metrics struct {
	httpAddress string
	registry    *prometheus.Registry
	httpServer  *http.Server
}

func NewMetrics(address string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(MetricsItems...)
	return &Metrics{
		httpAddress: address,
		registry:    registry,
	}
}

func (m *Metrics) Handler() http.Handler {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return router
}

// Run serves /metrics until ctx is done.
func (m *Metrics) Run(ctx context.Context) error {
	m.httpServer = &http.Server{
		Addr:              m.httpAddress,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		_ = m.httpServer.Shutdown(shutdownCtx)
	}()
	logging.Logger.Infof("metrics server listening on %s", m.httpAddress)
	if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Errorf("failed to listen and serve metrics, err=%s", err.Error())
		return err
	}
	return nil
}

func IncError(errType string) {
	ErrorsCounter.WithLabelValues(errType).Inc()
}
