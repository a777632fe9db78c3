package edgar

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrFrameNotFound is returned when the selected frame is not a row of the
// table. Callers are expected to offer only frames that exist in the table.
var ErrFrameNotFound = errors.New("frame not found in quarterly table")

// ComparisonResult holds the comparison view for one selected frame: the
// current value of each metric plus the quarter-over-quarter and
// year-over-year change ratios. A ratio cell that is not valid means
// "not available": the baseline frame was missing, its value was null, or it
// was exactly zero.
type ComparisonResult struct {
	Frame   string                         `json:"frame"`
	Metrics []string                       `json:"metrics"`
	Current map[string]decimal.NullDecimal `json:"current"`
	QoQ     map[string]decimal.NullDecimal `json:"qoq"`
	YoY     map[string]decimal.NullDecimal `json:"yoy"`
}

// PrevQuarterFrame returns the frame one quarter before (year, quarter),
// crossing the year boundary from Q1 to the prior year's Q4
func PrevQuarterFrame(year, quarter int) string {
	if quarter == 1 {
		return fmt.Sprintf("CY%dQ4", year-1)
	}
	return fmt.Sprintf("CY%dQ%d", year, quarter-1)
}

// PrevYearFrame returns the same quarter one year earlier
func PrevYearFrame(year, quarter int) string {
	return fmt.Sprintf("CY%dQ%d", year-1, quarter)
}

// Compare computes the current, QoQ, and YoY view for a selected frame.
// Pure function of the table and the frame: no fetching, no mutation.
//
// ErrFrameNotFound when the frame is absent from the table. A frame that is
// present but does not parse as CY<year>Q<1-4> yields current values with
// every change ratio unavailable - a degraded result, not an error.
func Compare(table *QuarterlyTable, selectedFrame string) (*ComparisonResult, error) {
	row, ok := table.Row(selectedFrame)
	if !ok {
		return nil, fmt.Errorf("compare %q: %w", selectedFrame, ErrFrameNotFound)
	}

	result := &ComparisonResult{
		Frame:   selectedFrame,
		Metrics: table.Metrics,
		Current: make(map[string]decimal.NullDecimal, len(table.Metrics)),
		QoQ:     make(map[string]decimal.NullDecimal, len(table.Metrics)),
		YoY:     make(map[string]decimal.NullDecimal, len(table.Metrics)),
	}
	for _, metric := range table.Metrics {
		result.Current[metric] = row.Value(metric)
	}

	year, quarter, ok := ParseFrame(selectedFrame)
	if !ok {
		// degraded result: ratios stay unavailable
		return result, nil
	}

	fillChanges(result.QoQ, table, row, PrevQuarterFrame(year, quarter))
	fillChanges(result.YoY, table, row, PrevYearFrame(year, quarter))
	return result, nil
}

// fillChanges computes (current - baseline) / baseline per metric against
// the baseline frame. Cells stay unavailable when the baseline frame is
// absent, the baseline value is null or zero, or the current value is null.
func fillChanges(dest map[string]decimal.NullDecimal, table *QuarterlyTable, current Row, baselineFrame string) {
	baseline, ok := table.Row(baselineFrame)
	if !ok {
		return
	}
	for _, metric := range table.Metrics {
		cur := current.Value(metric)
		base := baseline.Value(metric)
		if !cur.Valid || !base.Valid || base.Decimal.IsZero() {
			continue
		}
		dest[metric] = decimal.NullDecimal{
			Decimal: cur.Decimal.Sub(base.Decimal).Div(base.Decimal),
			Valid:   true,
		}
	}
}
