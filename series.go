package edgar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MetricSeries maps a quarterly frame label to the single fact retained for
// that frame, for one metric.
type MetricSeries map[string]FactRecord

// BuildMetricSeries deduplicates one metric's quarterly facts by frame.
// When multiple filings restate the same frame, the most recently filed one
// wins. This runs before any cross-metric merging.
func BuildMetricSeries(facts []FactRecord) MetricSeries {
	series := make(MetricSeries, len(facts))
	for _, fact := range facts {
		existing, ok := series[fact.Frame]
		if !ok || fact.Filed.After(existing.Filed) {
			series[fact.Frame] = fact
		}
	}
	return series
}

// Row is one quarterly table row: a frame, its period end, and the value of
// each metric for that quarter. A metric missing from Values is null.
type Row struct {
	Frame     string                         `json:"frame"`
	PeriodEnd time.Time                      `json:"periodEnd"`
	Values    map[string]decimal.NullDecimal `json:"values"`
}

// Value returns the cell for a metric; the zero NullDecimal (not valid)
// stands for "not available"
func (r Row) Value(metric string) decimal.NullDecimal {
	return r.Values[metric]
}

// QuarterlyTable is the merged quarterly series for one company: one row per
// distinct frame, ordered by period end descending. Lookup is by exact frame
// label, never by date.
type QuarterlyTable struct {
	Metrics []string `json:"metrics"`
	Rows    []Row    `json:"rows"`

	byFrame map[string]int
}

// NewQuarterlyTable builds a table from rows: sorts by period end descending,
// drops duplicate frames (first after sort wins), and indexes by frame.
func NewQuarterlyTable(metrics []string, rows []Row) *QuarterlyTable {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].PeriodEnd.Equal(rows[j].PeriodEnd) {
			return rows[i].PeriodEnd.After(rows[j].PeriodEnd)
		}
		return rows[i].Frame > rows[j].Frame
	})

	t := &QuarterlyTable{
		Metrics: metrics,
		byFrame: make(map[string]int, len(rows)),
	}
	for _, row := range rows {
		if _, seen := t.byFrame[row.Frame]; seen {
			continue
		}
		t.byFrame[row.Frame] = len(t.Rows)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Empty reports whether the table has no rows. An empty table is a valid
// terminal state ("no data"), not an error.
func (t *QuarterlyTable) Empty() bool {
	return len(t.Rows) == 0
}

// Frames returns the frame labels in display (period end descending) order
func (t *QuarterlyTable) Frames() []string {
	frames := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		frames[i] = row.Frame
	}
	return frames
}

// Row returns the row for an exact frame label
func (t *QuarterlyTable) Row(frame string) (Row, bool) {
	i, ok := t.byFrame[frame]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// FactSource fetches the full fact history for one company and tag.
// *Client implements it.
type FactSource interface {
	CompanyConcept(ctx context.Context, cik, tag string) (*ConceptResponse, error)
}

// BuildOptions configures one quarterly table build
type BuildOptions struct {
	CIK                string // required
	RevenueTag         string // resolved revenue tag; config default when empty
	IncludeGrossProfit bool   // request gross profit (and derived gross margin)
}

// BuildResult carries the table plus per-metric fetch failures. A failed
// metric contributes an all-null column, never an error from Build itself.
type BuildResult struct {
	Table        *QuarterlyTable
	RevenueTag   string
	MetricErrors map[string]error
}

// QuarterlySeriesBuilder merges independent per-metric fact streams into one
// quarterly table. Tables are built fresh per call and never mutated after.
type QuarterlySeriesBuilder struct {
	source FactSource
	cfg    *TagConfig
	log    zerolog.Logger
}

// BuilderOption customizes a QuarterlySeriesBuilder
type BuilderOption func(*QuarterlySeriesBuilder)

// WithBuilderTagConfig overrides the embedded tag configuration
func WithBuilderTagConfig(cfg *TagConfig) BuilderOption {
	return func(b *QuarterlySeriesBuilder) { b.cfg = cfg }
}

// WithBuilderLogger attaches a logger for degrade-site tracing
func WithBuilderLogger(log zerolog.Logger) BuilderOption {
	return func(b *QuarterlySeriesBuilder) { b.log = log }
}

// NewQuarterlySeriesBuilder creates a builder backed by the given fact source
func NewQuarterlySeriesBuilder(source FactSource, opts ...BuilderOption) *QuarterlySeriesBuilder {
	b := &QuarterlySeriesBuilder{
		source: source,
		cfg:    DefaultTagConfig(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// joinKey is the outer-join key. Joining on the (periodEnd, frame) pair
// rather than fetch order keeps the merge independent of metric ordering.
type joinKey struct {
	end   string
	frame string
}

// Build fetches every configured metric, merges the filtered series into one
// table, applies the required-metric drop, and derives gross margin.
//
// A transport or parse failure for one metric degrades to an all-null column
// recorded in MetricErrors. Zero surviving rows is a valid empty table.
func (b *QuarterlySeriesBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if opts.CIK == "" {
		return nil, fmt.Errorf("CIK is required")
	}
	revenueTag := opts.RevenueTag
	if revenueTag == "" {
		revenueTag = b.cfg.FallbackRevenueTag
	}

	metrics := b.cfg.Metrics(revenueTag, opts.IncludeGrossProfit)

	result := &BuildResult{
		RevenueTag:   revenueTag,
		MetricErrors: make(map[string]error),
	}

	rowsByKey := make(map[joinKey]*Row)
	var keys []joinKey

	for _, metric := range metrics {
		resp, err := b.source.CompanyConcept(ctx, opts.CIK, metric.Tag)
		if err != nil {
			// degrade to an all-null column for this metric
			b.log.Debug().Str("metric", metric.Label).Str("tag", metric.Tag).Err(err).Msg("no data for metric")
			result.MetricErrors[metric.Label] = err
			continue
		}

		series := BuildMetricSeries(resp.quarterlyFacts(b.log))
		for frame, fact := range series {
			key := joinKey{end: fact.PeriodEnd.Format("2006-01-02"), frame: frame}
			row, ok := rowsByKey[key]
			if !ok {
				row = &Row{
					Frame:     frame,
					PeriodEnd: fact.PeriodEnd,
					Values:    make(map[string]decimal.NullDecimal, len(metrics)),
				}
				rowsByKey[key] = row
				keys = append(keys, key)
			}
			row.Values[metric.Label] = decimal.NullDecimal{Decimal: fact.Value, Valid: true}
		}
	}

	required := []string{MetricRevenue}
	if opts.IncludeGrossProfit {
		required = append(required, MetricGrossProfit)
	}

	labels := make([]string, 0, len(metrics)+1)
	for _, m := range metrics {
		labels = append(labels, m.Label)
	}
	if opts.IncludeGrossProfit {
		labels = append(labels, MetricGrossMargin)
	}

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		row := rowsByKey[key]
		if !hasRequired(*row, required) {
			continue
		}
		deriveGrossMargin(row)
		rows = append(rows, *row)
	}

	result.Table = NewQuarterlyTable(labels, rows)
	return result, nil
}

// hasRequired reports whether every required metric has a value in the row
func hasRequired(row Row, required []string) bool {
	for _, metric := range required {
		if !row.Values[metric].Valid {
			return false
		}
	}
	return true
}

// deriveGrossMargin sets Gross Margin = Gross Profit / Revenue when both are
// present and revenue is non-zero; otherwise the cell stays unset
func deriveGrossMargin(row *Row) {
	gp := row.Values[MetricGrossProfit]
	rev := row.Values[MetricRevenue]
	if !gp.Valid || !rev.Valid || rev.Decimal.IsZero() {
		return
	}
	row.Values[MetricGrossMargin] = decimal.NullDecimal{
		Decimal: gp.Decimal.Div(rev.Decimal),
		Valid:   true,
	}
}
