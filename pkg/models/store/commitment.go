package store

import "time"

type Commitment struct {
	ID             int64
	StartDate      string
	EndDate        string
	TotalRevenue   float64
	TotalOrders    int64
	AvgOrderValue  float64
	CompletionRate float64
	TxHash         string
	ExplorerURL    string
	CreatedAt      time.Time
}

type CommitmentPeriod struct {
	StartDate string
	EndDate   string
}
