package edgar

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// quarterCSVRow is the flat CSV layout of one quarterly table row. It covers
// the default metric set; cells are raw numeric strings, empty when the
// metric is unavailable for that quarter.
type quarterCSVRow struct {
	Frame       string `csv:"frame"`
	PeriodEnd   string `csv:"period_end"`
	Revenue     string `csv:"revenue"`
	GrossProfit string `csv:"gross_profit"`
	NetIncome   string `csv:"net_income"`
	CashFlow    string `csv:"cash_flow"`
	GrossMargin string `csv:"gross_margin"`
}

// WriteTableCSV serializes the quarterly table as CSV in display order
func WriteTableCSV(w io.Writer, t *QuarterlyTable) error {
	rows := make([]quarterCSVRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		rows = append(rows, quarterCSVRow{
			Frame:       row.Frame,
			PeriodEnd:   row.PeriodEnd.Format("2006-01-02"),
			Revenue:     rawCell(row.Value(MetricRevenue)),
			GrossProfit: rawCell(row.Value(MetricGrossProfit)),
			NetIncome:   rawCell(row.Value(MetricNetIncome)),
			CashFlow:    rawCell(row.Value(MetricCashFlow)),
			GrossMargin: rawCell(row.Value(MetricGrossMargin)),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// rawCell renders a cell as its plain numeric string, empty when unavailable
func rawCell(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}

// FormatValue renders a metric value for display: "N/A" when unavailable,
// percent for margins, and $B/$M-scaled currency otherwise
func FormatValue(metric string, v decimal.NullDecimal) string {
	if !v.Valid {
		return "N/A"
	}
	if strings.Contains(metric, "Margin") {
		return FormatChange(v)
	}

	val, _ := v.Decimal.Float64()
	abs := val
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("$%.2fB", val/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("$%.1fM", val/1_000_000)
	default:
		return fmt.Sprintf("$%.0f", val)
	}
}

// FormatChange renders a signed ratio as a percentage, "N/A" when unavailable
func FormatChange(v decimal.NullDecimal) string {
	if !v.Valid {
		return "N/A"
	}
	pct, _ := v.Decimal.Mul(decimal.NewFromInt(100)).Float64()
	return fmt.Sprintf("%.1f%%", pct)
}

// RenderTable renders the quarterly table as an aligned plaintext table
func RenderTable(t *QuarterlyTable) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%-10s %-12s", "Quarter", "Period End")
	for _, metric := range t.Metrics {
		fmt.Fprintf(&sb, " %14s", metric)
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-10s %-12s", row.Frame, row.PeriodEnd.Format("2006-01-02"))
		for _, metric := range t.Metrics {
			fmt.Fprintf(&sb, " %14s", FormatValue(metric, row.Value(metric)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderComparison renders the current/QoQ/YoY view as a plaintext table
func RenderComparison(c *ComparisonResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Financial summary for %s\n\n", c.Frame)
	fmt.Fprintf(&sb, "%-14s %14s %12s %12s\n", "Metric", "Current", "QoQ", "YoY")

	for _, metric := range c.Metrics {
		fmt.Fprintf(&sb, "%-14s %14s %12s %12s\n",
			metric,
			FormatValue(metric, c.Current[metric]),
			FormatChange(c.QoQ[metric]),
			FormatChange(c.YoY[metric]),
		)
	}

	return sb.String()
}

// changeClass picks a styling class for a change ratio cell
func changeClass(v decimal.NullDecimal) string {
	switch {
	case !v.Valid:
		return "neutral"
	case v.Decimal.IsPositive():
		return "positive"
	case v.Decimal.IsNegative():
		return "negative"
	default:
		return "neutral"
	}
}

// WriteHTMLReport writes a self-contained HTML page with the quarterly table
// and the comparison view for the selected frame
func WriteHTMLReport(w io.Writer, company string, t *QuarterlyTable, c *ComparisonResult) error {
	var sb strings.Builder

	sb.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>Quarterly Financials</title>")
	sb.WriteString(`<style>
body{font-family:Arial,Helvetica,sans-serif}
table{border-collapse:collapse;margin-bottom:24px}td,th{border:1px solid #ccc;padding:6px;text-align:right}
th{background:#f2f2f2;text-align:center}
td.left{text-align:left}
.positive{background:#d4edda} .negative{background:#f8d7da} .neutral{background:#fffbe6}
</style>`)
	sb.WriteString("</head><body>")
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(company))

	if c != nil {
		fmt.Fprintf(&sb, "<h3>Summary for %s</h3>", html.EscapeString(c.Frame))
		sb.WriteString("<table><thead><tr><th>Metric</th><th>Current</th><th>QoQ</th><th>YoY</th></tr></thead><tbody>")
		for _, metric := range c.Metrics {
			sb.WriteString("<tr><td class='left'>" + html.EscapeString(metric) + "</td>")
			sb.WriteString("<td>" + html.EscapeString(FormatValue(metric, c.Current[metric])) + "</td>")
			sb.WriteString("<td class='" + changeClass(c.QoQ[metric]) + "'>" + html.EscapeString(FormatChange(c.QoQ[metric])) + "</td>")
			sb.WriteString("<td class='" + changeClass(c.YoY[metric]) + "'>" + html.EscapeString(FormatChange(c.YoY[metric])) + "</td>")
			sb.WriteString("</tr>")
		}
		sb.WriteString("</tbody></table>")
	}

	sb.WriteString("<h3>Quarterly history</h3>")
	sb.WriteString("<table><thead><tr><th>Quarter</th><th>Period End</th>")
	for _, metric := range t.Metrics {
		sb.WriteString("<th>" + html.EscapeString(metric) + "</th>")
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range t.Rows {
		sb.WriteString("<tr><td class='left'>" + html.EscapeString(row.Frame) + "</td>")
		sb.WriteString("<td>" + row.PeriodEnd.Format("2006-01-02") + "</td>")
		for _, metric := range t.Metrics {
			sb.WriteString("<td>" + html.EscapeString(FormatValue(metric, row.Value(metric))) + "</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	sb.WriteString("</body></html>")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}
