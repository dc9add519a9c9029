package domain

// FinishedSummary carries the terminal totals pushed by the backend
// when a run completes.
type FinishedSummary struct {
	TotalTicks          int
	TotalRevenue        float64
	TotalProfit         float64
	TotalUnitsSold      int
	FinalInventoryValue float64
	ProfitMargin        float64
}

// RunSummary is the persisted record of a completed run: the backend's
// terminal totals plus the incrementally tracked highlights.
// Corresponds to the run_summaries table in PostgreSQL.
type RunSummary struct {
	RunID      string // PRIMARY KEY, deterministic hash (see idhash)
	Scenario   string
	Agent      string
	Seed       int64
	Summary    FinishedSummary
	Highlights RunHighlights
	FinishedAt int64 // Unix timestamp in milliseconds
}

// ArchivedTick is one recorded tick of a run, retained for replay.
// Corresponds to the tick_archive tables in ClickHouse.
type ArchivedTick struct {
	RunID      string
	Tick       int
	Metrics    Metrics
	Products   []ProductState
	RecordedAt int64 // Unix timestamp in milliseconds
}
