package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики scan loop и доставки. Регистрируются в default registry,
// каждый бинарь отдаёт их через promhttp на своём /metrics.
var (
	// ScanTicks — количество тиков scan loop.
	ScanTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "megaphone_scan_ticks_total",
		Help: "Number of scan loop ticks executed.",
	})

	// PushesScanned — количество записей-кандидатов, просмотренных сканом.
	PushesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "megaphone_pushes_scanned_total",
		Help: "Number of candidate push records examined by the scan loop.",
	})

	// PushesFinalized — финализированные записи по терминальному статусу.
	PushesFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "megaphone_pushes_finalized_total",
		Help: "Number of push records moved to a terminal status.",
	}, []string{"status"})

	// OffsetsClaimed — заклеймленные offsets (включая absolute).
	OffsetsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "megaphone_offsets_claimed_total",
		Help: "Number of (push, offset) pairs claimed for delivery.",
	})

	// BatchesPublished — опубликованные в очередь батчи.
	BatchesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "megaphone_batches_published_total",
		Help: "Number of recipient batches published to the queue.",
	})

	// DeliveryResults — результаты доставки по получателям.
	DeliveryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "megaphone_delivery_results_total",
		Help: "Per-recipient delivery results reported by workers.",
	}, []string{"result"})

	// OffsetIndexZones — размер текущего снимка offset-индекса.
	OffsetIndexZones = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "megaphone_offset_index_zones",
		Help: "Number of timezones in the current offset index snapshot.",
	})
)
