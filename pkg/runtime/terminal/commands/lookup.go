package commands

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/de-tools/report-ledger/pkg/runtime/terminal/export"
	"github.com/de-tools/report-ledger/pkg/services/ledger"
	"github.com/spf13/cobra"
)

type LookupCmd struct {
	id       string
	services Services
	reporter *export.Reporter
}

func NewLookupCmd(services Services, reporter *export.Reporter) *cobra.Command {
	lc := &LookupCmd{services: services, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Read the hash the contract holds for a report id",
		RunE:  lc.run,
	}

	cmd.Flags().StringVar(&lc.id, "id", "", "Report id assigned by the contract")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func (lc *LookupCmd) run(cmd *cobra.Command, _ []string) error {
	id, ok := new(big.Int).SetString(lc.id, 10)
	if !ok || id.Sign() < 0 {
		return fmt.Errorf("invalid report id %q", lc.id)
	}

	ctx := cmd.Context()
	svc, release, err := lc.services(ctx)
	if err != nil {
		return err
	}
	defer release()

	hash, err := svc.LookupHash(ctx, id)
	if errors.Is(err, ledger.ErrReportNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "No hash recorded for report %s\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up report %s: %w", id, err)
	}
	return lc.reporter.LedgerHash(id.String(), hash)
}
