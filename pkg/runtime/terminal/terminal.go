package terminal

import (
	"io"
	"os"

	"github.com/de-tools/report-ledger/pkg/runtime/terminal/commands"
	"github.com/de-tools/report-ledger/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	services commands.Services
	reporter *export.Reporter
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Services commands.Services
	Output   io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cli := &CLI{
		services: opts.Services,
		reporter: export.NewReporter(opts.Output),
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and commit periodic reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(commands.NewCanonicalizeCmd(cli.reporter))
	cmd.AddCommand(commands.NewMintCmd(cli.services, cli.reporter))
	cmd.AddCommand(commands.NewReportHashCmd(cli.services, cli.reporter))
	cmd.AddCommand(commands.NewLookupCmd(cli.services, cli.reporter))

	return cmd
}
