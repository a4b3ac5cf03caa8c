// Package observability provides formatted terminal output for the CLI.
package observability

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/samber/lo"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxWaterfallRows matches the row limit of the dashboard waterfall plot
	maxWaterfallRows = 10
	// barWidth is the width of the longest contribution bar
	barWidth = 16
)

// Printer handles formatted output for the CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines, counting runes so bars are not split
		if runes := []rune(line); len(runes) > boxWidth-4 {
			line = string(runes[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %s%s │\n", line, strings.Repeat(" ", boxWidth-4-len([]rune(line))))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPrediction outputs a single churn probability.
func (p *Printer) PrintPrediction(probability float64) {
	label := "likely to stay"
	if probability >= 0.5 {
		label = "likely to churn"
	}
	p.printBox("CHURN PREDICTION", fmt.Sprintf("Churn probability: %.4f (%s)", probability, label))
}

// PrintAttribution outputs a text waterfall of the top contributions, largest
// magnitude first. Remaining features are folded into one row.
func (p *Printer) PrintAttribution(attr *types.AttributionSet, top int) {
	if attr == nil {
		return
	}
	if top <= 0 || top > maxWaterfallRows {
		top = maxWaterfallRows
	}

	rows := attr.Top(top)
	rest := len(attr.Contributions) - len(rows)
	restSum := attr.RawMargin - attr.BaseValue - lo.SumBy(rows, func(r types.FeatureContribution) float64 { return r.Contribution })

	scale := lo.MaxBy(rows, func(a, b types.FeatureContribution) bool {
		return math.Abs(a.Contribution) > math.Abs(b.Contribution)
	}).Contribution
	scale = math.Abs(scale)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("E[f(x)] = %+.4f\n\n", attr.BaseValue))
	for _, r := range rows {
		name := r.Feature
		if r.Value != "" {
			name = fmt.Sprintf("%s = %s", r.Feature, r.Value)
		}
		sb.WriteString(fmt.Sprintf("%-28.28s %+8.4f %s\n", name, r.Contribution, bar(r.Contribution, scale)))
	}
	if rest > 0 {
		sb.WriteString(fmt.Sprintf("%-28s %+8.4f\n", fmt.Sprintf("%d other features", rest), restSum))
	}
	sb.WriteString(fmt.Sprintf("\nf(x) = %+.4f  (churn probability %.4f)", attr.RawMargin, model.Sigmoid(attr.RawMargin)))

	p.printBox("FEATURE CONTRIBUTIONS", sb.String())
}

// PrintRanking outputs ranked customers with their probabilities.
func (p *Printer) PrintRanking(ranked *types.RankedCustomers) {
	if ranked == nil || len(ranked.Ranked) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Top %d of %d customers by churn risk\n\n", len(ranked.Ranked), ranked.Total))
	for _, c := range ranked.Ranked {
		sb.WriteString(fmt.Sprintf("#%-3d %-14s %.4f  %s, tenure %d\n",
			c.Rank, c.CustomerID, c.ChurnProbability, c.Record.Contract, c.Record.Tenure))
	}

	p.printBox("AT-RISK CUSTOMERS", strings.TrimSuffix(sb.String(), "\n"))
}

// ModelSummary is the descriptive information printed by PrintModel.
type ModelSummary struct {
	Name          string
	Description   string
	TrainedAt     string
	Metrics       map[string]float64
	Features      []string
	Categorical   []string
	Trees         int
	ExpectedValue float64
	Fingerprint   string
}

// PrintModel outputs a summary of a loaded model artifact.
func (p *Printer) PrintModel(m ModelSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:         %s\n", lo.Ternary(m.Name != "", m.Name, "(unnamed)")))
	if m.Description != "" {
		sb.WriteString(fmt.Sprintf("Description:  %s\n", m.Description))
	}
	if m.TrainedAt != "" {
		sb.WriteString(fmt.Sprintf("Trained at:   %s\n", m.TrainedAt))
	}
	sb.WriteString(fmt.Sprintf("Trees:        %d\n", m.Trees))
	sb.WriteString(fmt.Sprintf("Features:     %d (%d categorical)\n", len(m.Features), len(m.Categorical)))
	sb.WriteString(fmt.Sprintf("E[f(x)]:      %+.4f\n", m.ExpectedValue))
	if len(m.Fingerprint) > 16 {
		sb.WriteString(fmt.Sprintf("Fingerprint:  %s\n", m.Fingerprint[:16]))
	}
	if len(m.Metrics) > 0 {
		sb.WriteString("\nMetrics:\n")
		for _, k := range sortedKeys(m.Metrics) {
			sb.WriteString(fmt.Sprintf("  • %s: %.4f\n", k, m.Metrics[k]))
		}
	}

	p.printBox("MODEL ARTIFACT", strings.TrimSuffix(sb.String(), "\n"))
}

func bar(v, scale float64) string {
	if scale == 0 {
		return ""
	}
	n := int(math.Round(math.Abs(v) / scale * barWidth))
	if v >= 0 {
		return strings.Repeat("█", n)
	}
	return strings.Repeat("░", n)
}

func sortedKeys(m map[string]float64) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
