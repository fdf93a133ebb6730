package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/de-tools/report-ledger/pkg/adapters"
	"github.com/de-tools/report-ledger/pkg/models/api"
	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/de-tools/report-ledger/pkg/services/report"
)

// Services opens the report service on demand so that offline commands never
// touch the ledger or the database. The returned func releases it.
type Services func(ctx context.Context) (report.Service, func(), error)

// readReport decodes a report from path, or from stdin when path is "-".
func readReport(path string, stdin io.Reader) (domain.Report, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.Report{}, fmt.Errorf("failed to open report: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req api.MintReportRequest
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return domain.Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	if req.StartDate == "" || req.EndDate == "" {
		return domain.Report{}, fmt.Errorf("report must have startDate and endDate")
	}
	return adapters.MapApiMintRequestToDomainReport(req), nil
}
