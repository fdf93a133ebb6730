package adapters

import (
	"github.com/de-tools/report-ledger/pkg/models/api"
	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/de-tools/report-ledger/pkg/models/store"
)

func MapApiMintRequestToDomainReport(req api.MintReportRequest) domain.Report {
	orders := req.Orders
	if orders == nil {
		orders = []map[string]interface{}{}
	}

	return domain.Report{
		Period: domain.Period{
			Start: req.StartDate,
			End:   req.EndDate,
		},
		Metrics: domain.ReportMetrics{
			TotalRevenue:   req.TotalRevenue,
			TotalOrders:    req.TotalOrders,
			AvgOrderValue:  req.AvgOrderValue,
			CompletionRate: req.CompletionRate,
		},
		Orders: orders,
	}
}

func MapDomainCommitmentToStore(rec domain.CommitmentRecord) store.Commitment {
	return store.Commitment{
		StartDate:      rec.Period.Start,
		EndDate:        rec.Period.End,
		TotalRevenue:   rec.Metrics.TotalRevenue,
		TotalOrders:    int64(rec.Metrics.TotalOrders),
		AvgOrderValue:  rec.Metrics.AvgOrderValue,
		CompletionRate: rec.Metrics.CompletionRate,
		TxHash:         rec.TxID,
		ExplorerURL:    rec.ExplorerURL,
		CreatedAt:      rec.CreatedAt,
	}
}

func MapStoreCommitmentToDomain(c *store.Commitment) *domain.CommitmentRecord {
	if c == nil {
		return nil
	}

	return &domain.CommitmentRecord{
		Period: domain.Period{
			Start: c.StartDate,
			End:   c.EndDate,
		},
		Metrics: domain.ReportMetrics{
			TotalRevenue:   c.TotalRevenue,
			TotalOrders:    int(c.TotalOrders),
			AvgOrderValue:  c.AvgOrderValue,
			CompletionRate: c.CompletionRate,
		},
		TxID:        c.TxHash,
		ExplorerURL: c.ExplorerURL,
		CreatedAt:   c.CreatedAt,
	}
}

func MapDomainPeriodToStore(p domain.Period) store.CommitmentPeriod {
	return store.CommitmentPeriod{
		StartDate: p.Start,
		EndDate:   p.End,
	}
}

func MapDomainCommitmentToApiMint(rec domain.CommitmentRecord) api.MintReportResponse {
	return api.MintReportResponse{
		Success:         true,
		TransactionHash: rec.TxID,
		ExplorerURL:     rec.ExplorerURL,
	}
}

func MapDomainCommitmentToApiHash(rec *domain.CommitmentRecord) api.ReportHashResponse {
	if rec == nil {
		return api.ReportHashResponse{Success: false}
	}

	return api.ReportHashResponse{
		Success:         true,
		TransactionHash: rec.TxID,
		ExplorerURL:     rec.ExplorerURL,
	}
}
