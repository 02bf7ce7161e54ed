package telemetry

// Histogram bucket definitions
var (
	// StatementBuckets covers interactive notebook statements, from cached
	// lookups to multi-second analytical queries
	StatementBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

	// RowCountBuckets for rows returned or affected per statement
	RowCountBuckets = []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000}
)

// Connection Metrics
var (
	// ConnectionOpensTotal counts connection handshakes by style (shared, per-call) and result
	ConnectionOpensTotal CounterVec = noopCounterVec{}

	// ConnectionsOpen tracks live pinned connections
	ConnectionsOpen Gauge = NoopStat{}

	// ConnectionCloseErrorsTotal counts best-effort closes that failed
	ConnectionCloseErrorsTotal Counter = NoopStat{}
)

// Statement Metrics
var (
	// StatementsTotal counts statements by outcome (rows, update, failure)
	StatementsTotal CounterVec = noopCounterVec{}

	// StatementDurationSeconds measures execution latency by outcome
	StatementDurationSeconds HistogramVec = noopHistogramVec{}

	// RowsReturned measures rows materialized per row-producing statement
	RowsReturned Histogram = NoopStat{}

	// RowsAffected measures rows affected per update statement
	RowsAffected Histogram = NoopStat{}

	// RowSetsTruncatedTotal counts results cut off at max rows
	RowSetsTruncatedTotal Counter = NoopStat{}

	// CancelsTotal counts cancel requests by effect (cancelled, idle)
	CancelsTotal CounterVec = noopCounterVec{}

	// MetaCommandsTotal counts meta-commands by name (info, tables, refresh, help, unknown)
	MetaCommandsTotal CounterVec = noopCounterVec{}
)

// Completion Metrics
var (
	// CompletionBuildsTotal counts index builds and schema refreshes by kind and result
	CompletionBuildsTotal CounterVec = noopCounterVec{}

	// CompletionLookupsTotal counts completion queries by cache result (hit, miss)
	CompletionLookupsTotal CounterVec = noopCounterVec{}

	// CompletionCandidates tracks the candidate universe size per interpreter
	CompletionCandidates GaugeVec = noopGaugeVec{}
)

// Interpreter Metrics
var (
	// InterpreterQueueDepth tracks pending submissions per interpreter
	InterpreterQueueDepth GaugeVec = noopGaugeVec{}

	// InterpreterConnected tracks whether the shared connection is open (1=yes, 0=no)
	InterpreterConnected GaugeVec = noopGaugeVec{}

	// InterpretersRegistered tracks opened interpreters
	InterpretersRegistered Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	ConnectionOpensTotal = NewCounterVec(
		"connection_opens_total",
		"Connection handshakes by style and result",
		[]string{"style", "result"},
	)
	ConnectionsOpen = NewGauge(
		"connections_open",
		"Number of open database connections",
	)
	ConnectionCloseErrorsTotal = NewCounter(
		"connection_close_errors_total",
		"Connection closes that returned an error",
	)

	StatementsTotal = NewCounterVec(
		"statements_total",
		"Statements executed by outcome",
		[]string{"outcome"},
	)
	StatementDurationSeconds = NewHistogramVec(
		"statement_duration_seconds",
		"Statement duration in seconds",
		[]string{"outcome"},
		StatementBuckets,
	)
	RowsReturned = NewHistogram(
		"rows_returned",
		"Number of rows returned per row-producing statement",
		RowCountBuckets,
	)
	RowsAffected = NewHistogram(
		"rows_affected",
		"Number of rows affected per update statement",
		RowCountBuckets,
	)
	RowSetsTruncatedTotal = NewCounter(
		"rowsets_truncated_total",
		"Row sets cut off at the max rows limit",
	)
	CancelsTotal = NewCounterVec(
		"cancels_total",
		"Cancel requests by effect",
		[]string{"effect"},
	)
	MetaCommandsTotal = NewCounterVec(
		"meta_commands_total",
		"Meta-commands by name",
		[]string{"command"},
	)

	CompletionBuildsTotal = NewCounterVec(
		"completion_builds_total",
		"Completion index builds by kind and result",
		[]string{"kind", "result"},
	)
	CompletionLookupsTotal = NewCounterVec(
		"completion_lookups_total",
		"Completion lookups by cache result",
		[]string{"cache"},
	)
	CompletionCandidates = NewGaugeVec(
		"completion_candidates",
		"Completion candidates known per interpreter",
		[]string{"interpreter"},
	)

	InterpreterQueueDepth = NewGaugeVec(
		"interpreter_queue_depth",
		"Pending submissions per interpreter",
		[]string{"interpreter"},
	)
	InterpreterConnected = NewGaugeVec(
		"interpreter_connected",
		"Whether the interpreter holds an open shared connection (1=yes, 0=no)",
		[]string{"interpreter"},
	)
	InterpretersRegistered = NewGauge(
		"interpreters_registered",
		"Number of registered interpreters",
	)
}
