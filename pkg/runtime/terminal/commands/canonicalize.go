package commands

import (
	"fmt"

	"github.com/de-tools/report-ledger/pkg/runtime/terminal/export"
	"github.com/de-tools/report-ledger/pkg/services/canonical"
	"github.com/spf13/cobra"
)

type CanonicalizeCmd struct {
	file     string
	reporter *export.Reporter
}

func NewCanonicalizeCmd(reporter *export.Reporter) *cobra.Command {
	cc := &CanonicalizeCmd{reporter: reporter}
	cmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Print the canonical form and fingerprint of a report without committing it",
		RunE:  cc.run,
	}

	cmd.Flags().StringVarP(&cc.file, "file", "f", "-", "Report JSON file, - for stdin")

	return cmd
}

func (cc *CanonicalizeCmd) run(cmd *cobra.Command, _ []string) error {
	r, err := readReport(cc.file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	payload, err := canonical.Canonicalize(r)
	if err != nil {
		return fmt.Errorf("failed to canonicalize report: %w", err)
	}
	return cc.reporter.Canonical(payload, canonical.Fingerprint(payload))
}
