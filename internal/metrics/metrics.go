package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	StreamState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swapscope_stream_state",
		Help: "Current connection state (0=disconnected 1=connecting 2=live 3=degraded 4=reconnecting 5=fatal)",
	})
	ActiveEndpoint = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swapscope_active_endpoint",
		Help: "Indicates which RPC endpoint is currently active (1=active, 0=inactive)",
	}, []string{"endpoint"})
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_reconnects_total",
		Help: "Total number of reconnect attempts",
	})
	Rotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_endpoint_rotations_total",
		Help: "Total number of endpoint rotations by reason",
	}, []string{"reason"})
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_rate_limited_total",
		Help: "Total number of rate-limit errors observed by the stream",
	})
	BlocksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_blocks_processed_total",
		Help: "Total number of blocks handed to the pipeline",
	})
	LastBlock = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swapscope_last_processed_block",
		Help: "Last block number processed in polling mode",
	})
	LogsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_logs_received_total",
		Help: "Total number of subscription logs received",
	})
	TransactionsAnalyzed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_transactions_analyzed_total",
		Help: "Total number of transactions analyzed by outcome",
	}, []string{"outcome"})
	SwapsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_swaps_detected_total",
		Help: "Total number of swaps detected by kind",
	}, []string{"kind"})
	CallDataDecodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_calldata_decodes_total",
		Help: "Total number of router call data decodes by status",
	}, []string{"status"})
	TokenLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_token_lookups_total",
		Help: "Total number of token metadata lookups by source",
	}, []string{"source"})
	AlertsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_alerts_sent_total",
		Help: "Total number of alerts delivered per sink",
	}, []string{"sink"})
	AlertsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_alerts_dropped_total",
		Help: "Total number of alerts dropped per sink and reason",
	}, []string{"sink", "reason"})
	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapscope_rpc_calls_total",
		Help: "Total number of RPC calls by method and status",
	}, []string{"method", "status"})
	RPCLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapscope_rpc_latency_seconds",
		Help:    "RPC call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapscope_analysis_duration_seconds",
		Help:    "Time spent fetching and classifying one transaction",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		StreamState,
		ActiveEndpoint,
		Reconnects,
		Rotations,
		RateLimited,
		BlocksProcessed,
		LastBlock,
		LogsReceived,
		TransactionsAnalyzed,
		SwapsDetected,
		CallDataDecodes,
		TokenLookups,
		AlertsSent,
		AlertsDropped,
		RPCCalls,
		RPCLatency,
		AnalysisDuration,
	)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}
