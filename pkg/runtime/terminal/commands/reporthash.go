package commands

import (
	"fmt"

	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/de-tools/report-ledger/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type ReportHashCmd struct {
	start    string
	end      string
	services Services
	reporter *export.Reporter
}

func NewReportHashCmd(services Services, reporter *export.Reporter) *cobra.Command {
	rc := &ReportHashCmd{services: services, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "report-hash",
		Short: "Show the latest recorded commitment for a report period",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.start, "start", "", "Period start date as recorded (e.g. 2024-01-01)")
	cmd.Flags().StringVar(&rc.end, "end", "", "Period end date as recorded (e.g. 2024-01-31)")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func (rc *ReportHashCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, release, err := rc.services(ctx)
	if err != nil {
		return err
	}
	defer release()

	record, err := svc.LatestByPeriod(ctx, domain.Period{Start: rc.start, End: rc.end})
	if err != nil {
		return fmt.Errorf("failed to fetch report hash: %w", err)
	}
	if record == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No commitment recorded for %s to %s\n", rc.start, rc.end)
		return nil
	}
	return rc.reporter.Commitment(record)
}
