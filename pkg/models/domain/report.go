package domain

import "time"

// Period identifies a reporting window. Bounds are opaque date strings and
// are matched exactly, never parsed or compared as ranges.
type Period struct {
	Start string
	End   string
}

// ReportMetrics are the aggregate figures of a report.
type ReportMetrics struct {
	TotalRevenue   float64
	TotalOrders    int
	AvgOrderValue  float64
	CompletionRate float64
}

// Report represents a periodic business report committed to the ledger
type Report struct {
	Period  Period
	Metrics ReportMetrics
	Orders  []map[string]interface{}
}

// CommitmentRecord is the local proof that a report was committed.
type CommitmentRecord struct {
	Period      Period
	Metrics     ReportMetrics
	TxID        string
	ExplorerURL string
	CreatedAt   time.Time
}
