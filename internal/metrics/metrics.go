package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Finding lifecycle metrics
var (
	// TransitionsTotal tracks lifecycle transitions by kind and outcome
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finding_transitions_total",
			Help: "Total number of finding lifecycle transitions by kind and outcome",
		},
		[]string{"transition", "outcome"},
	)

	// OpenFindings tracks currently open findings by severity
	OpenFindings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "findings_open",
			Help: "Number of currently open findings by severity",
		},
		[]string{"severity"},
	)

	// ReviewsSweptTotal tracks stale reviews cleared by the sweeper
	ReviewsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finding_reviews_swept_total",
			Help: "Total number of stale review requests cleared by the sweeper",
		},
	)
)

// Bulk edit metrics
var (
	// BulkEditBatchesTotal tracks bulk edit batches by outcome
	BulkEditBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_edit_batches_total",
			Help: "Total number of bulk edit batches by outcome",
		},
		[]string{"outcome"},
	)

	// BulkEditFindingsTotal tracks per-finding bulk edit results
	BulkEditFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_edit_findings_total",
			Help: "Total number of findings processed by bulk edits, by result",
		},
		[]string{"result"},
	)

	// BulkEditBatchSize tracks the size distribution of bulk edit batches
	BulkEditBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulk_edit_batch_size",
			Help:    "Number of findings per bulk edit batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

// CVSS metrics
var (
	// CVSSValidationsTotal tracks vector validations by version and outcome
	CVSSValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvss_validations_total",
			Help: "Total number of CVSS vector validations by version and outcome",
		},
		[]string{"version", "outcome"},
	)
)

// Template metrics
var (
	// TemplateApplicationsTotal tracks template applications by mode
	TemplateApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_applications_total",
			Help: "Total number of template applications by mode",
		},
		[]string{"mode"},
	)

	// TemplatesCreatedTotal tracks template snapshots taken from findings
	TemplatesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "templates_created_total",
			Help: "Total number of templates snapshotted from findings",
		},
	)
)

// Import metrics
var (
	// ImportsTotal tracks scan report imports by scanner and outcome
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_imports_total",
			Help: "Total number of scan report imports by scanner and outcome",
		},
		[]string{"scanner", "outcome"},
	)

	// ImportedFindingsTotal tracks findings created by imports
	ImportedFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_imported_findings_total",
			Help: "Total number of findings created by scan imports",
		},
		[]string{"scanner", "severity"},
	)

	// ImportDuration tracks report processing time
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_import_duration_seconds",
			Help:    "Scan report processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"scanner"},
	)
)

// Notification metrics
var (
	// NotificationsTotal tracks outbound notifications by kind and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of outbound notifications by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)
