package api

type MintReportRequest struct {
	StartDate      string                   `json:"startDate"`
	EndDate        string                   `json:"endDate"`
	TotalRevenue   float64                  `json:"totalRevenue"`
	TotalOrders    int                      `json:"totalOrders"`
	AvgOrderValue  float64                  `json:"avgOrderValue"`
	CompletionRate float64                  `json:"completionRate"`
	Orders         []map[string]interface{} `json:"orders"`
}

type MintReportResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
}

type ReportHashRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ReportHashResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
}

// LedgerHashResponse is returned by the on-chain lookup route.
type LedgerHashResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Hash    string `json:"hash,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type ServiceInfo struct {
	Message string `json:"message"`
	Service string `json:"service"`
}
