package commands

import (
	"fmt"

	"github.com/de-tools/report-ledger/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type MintCmd struct {
	file     string
	services Services
	reporter *export.Reporter
}

func NewMintCmd(services Services, reporter *export.Reporter) *cobra.Command {
	mc := &MintCmd{services: services, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Commit a report to the ledger and record the proof",
		RunE:  mc.run,
	}

	cmd.Flags().StringVarP(&mc.file, "file", "f", "", "Report JSON file, - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (mc *MintCmd) run(cmd *cobra.Command, _ []string) error {
	r, err := readReport(mc.file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, release, err := mc.services(ctx)
	if err != nil {
		return err
	}
	defer release()

	record, err := svc.Commit(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return mc.reporter.Commitment(record)
}
