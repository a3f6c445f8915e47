package session

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadBytesWritten = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gemmad",
		Subsystem: "download",
		Name:      "bytes_written",
		Help:      "Bytes of the model artifact written to local storage so far",
	})

	downloadTotalBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gemmad",
		Subsystem: "download",
		Name:      "total_bytes",
		Help:      "Total bytes declared by the remote source, 0 when unknown",
	})

	downloadPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gemmad",
		Subsystem: "download",
		Name:      "percent",
		Help:      "Artifact download completion percentage",
	})

	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gemmad",
		Subsystem: "session",
		Name:      "retries_total",
		Help:      "User-triggered lifecycle retries",
	})

	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gemmad",
		Subsystem: "session",
		Name:      "generations_total",
		Help:      "Completed generation requests by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(downloadBytesWritten, downloadTotalBytes, downloadPercent, retriesTotal, generationsTotal)
}
