package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/report-ledger/pkg/models/domain"
)

type TableConfig struct {
	NameWidth  int
	ValueWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:  18,
		ValueWidth: 90,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) funcs() template.FuncMap {
	return template.FuncMap{
		"formatRow": func(name string, value interface{}) string {
			return fmt.Sprintf("| %-*s | %-*v |",
				c.config.NameWidth, name,
				c.config.ValueWidth, value)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+",
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2))
		},
	}
}

const commitmentTemplate = `
Commitment for {{.Period.Start}} to {{.Period.End}}

{{separator}}
{{formatRow "Field" "Value"}}
{{separator}}
{{formatRow "Transaction" .TxID}}
{{formatRow "Explorer" .ExplorerURL}}
{{formatRow "Total revenue" .Metrics.TotalRevenue}}
{{formatRow "Total orders" .Metrics.TotalOrders}}
{{formatRow "Avg order value" .Metrics.AvgOrderValue}}
{{formatRow "Completion rate" .Metrics.CompletionRate}}
{{formatRow "Recorded at" (.CreatedAt.Format "2006-01-02 15:04:05 MST")}}
{{separator}}
`

// Commitment prints a stored commitment record.
func (c *Reporter) Commitment(record *domain.CommitmentRecord) error {
	t, err := template.New("commitment").Funcs(c.funcs()).Parse(commitmentTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, record)
}

// Canonical prints a canonical payload and its fingerprint.
func (c *Reporter) Canonical(payload, fingerprint string) error {
	_, err := fmt.Fprintf(c.writer, "%s\nfingerprint: %s\n", payload, fingerprint)
	return err
}

func (c *Reporter) LedgerHash(id, hash string) error {
	_, err := fmt.Fprintf(c.writer, "report %s: %s\n", id, hash)
	return err
}
