package edgar

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ConceptResponse is the company-concept JSON returned by the SEC XBRL API.
// Units maps a unit of measure (almost always "USD") to raw fact entries.
type ConceptResponse struct {
	CIK         int                       `json:"cik"`
	Taxonomy    string                    `json:"taxonomy"`
	Tag         string                    `json:"tag"`
	Label       string                    `json:"label"`
	Description string                    `json:"description"`
	EntityName  string                    `json:"entityName"`
	Units       map[string][]ConceptEntry `json:"units"`
}

// ConceptEntry is one raw disclosed value as filed. Val is decoded lazily so
// a single malformed value skips one entry instead of failing the response.
type ConceptEntry struct {
	Start string      `json:"start,omitempty"` // empty for instant facts
	End   string      `json:"end"`
	Val   json.Number `json:"val"`
	Accn  string      `json:"accn"`
	FY    int         `json:"fy"`
	FP    string      `json:"fp"`
	Form  string      `json:"form"`
	Filed string      `json:"filed"`
	Frame string      `json:"frame,omitempty"`
}

// FactRecord is one normalized disclosed value for one metric.
// It is immutable once constructed.
type FactRecord struct {
	PeriodStart  time.Time // zero for instant (point-in-time) facts
	PeriodEnd    time.Time
	Value        decimal.Decimal
	Form         string // filing form, e.g. "10-Q", "10-K"
	Filed        time.Time
	FiscalYear   int    // advisory only
	FiscalPeriod string // advisory only
	Frame        string // calendar-quarter label, e.g. "CY2021Q2"
}

// quarterFrameRE matches frames that denote a standard calendar quarter.
// Facts whose frame is absent, annual (CY2021) or otherwise non-quarterly
// are excluded from quarterly comparison by design.
var quarterFrameRE = regexp.MustCompile(`^CY(\d{4})Q([1-4])$`)

// IsQuarterFrame reports whether a frame label denotes a calendar quarter
func IsQuarterFrame(frame string) bool {
	return quarterFrameRE.MatchString(frame)
}

// ParseFrame extracts the calendar year and quarter from a frame label.
// ok is false for anything that is not a CY<year>Q<1-4> label.
func ParseFrame(frame string) (year, quarter int, ok bool) {
	m := quarterFrameRE.FindStringSubmatch(frame)
	if m == nil {
		return 0, 0, false
	}
	// the regexp guarantees both groups are small integers
	for _, r := range m[1] {
		year = year*10 + int(r-'0')
	}
	quarter = int(m[2][0] - '0')
	return year, quarter, true
}

// QuarterlyFacts normalizes the USD facts of a concept response into
// FactRecords, keeping only facts with a quarterly frame. Entries with
// missing dates or non-numeric values are dropped silently: the failure mode
// here is always "show less data".
func (r *ConceptResponse) QuarterlyFacts() []FactRecord {
	return r.quarterlyFacts(zerolog.Nop())
}

func (r *ConceptResponse) quarterlyFacts(log zerolog.Logger) []FactRecord {
	entries := r.Units["USD"]

	facts := make([]FactRecord, 0, len(entries))
	for _, e := range entries {
		if !IsQuarterFrame(e.Frame) {
			continue
		}

		end, err := time.Parse("2006-01-02", e.End)
		if err != nil {
			log.Debug().Str("tag", r.Tag).Str("end", e.End).Msg("skipping fact with bad period end")
			continue
		}
		filed, err := time.Parse("2006-01-02", e.Filed)
		if err != nil {
			log.Debug().Str("tag", r.Tag).Str("filed", e.Filed).Msg("skipping fact with bad filed date")
			continue
		}

		val, err := decimal.NewFromString(e.Val.String())
		if err != nil {
			log.Debug().Str("tag", r.Tag).Str("frame", e.Frame).Msg("skipping non-numeric fact")
			continue
		}

		fact := FactRecord{
			PeriodEnd:    end,
			Value:        val,
			Form:         e.Form,
			Filed:        filed,
			FiscalYear:   e.FY,
			FiscalPeriod: e.FP,
			Frame:        e.Frame,
		}
		if e.Start != "" {
			if start, err := time.Parse("2006-01-02", e.Start); err == nil {
				fact.PeriodStart = start
			}
		}

		facts = append(facts, fact)
	}

	return facts
}

// IsInstant returns true if this fact is for a point in time (balance sheet)
func (f *FactRecord) IsInstant() bool {
	return f.PeriodStart.IsZero()
}
