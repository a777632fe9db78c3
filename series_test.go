package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// fakeFactSource serves canned concept responses keyed by tag. Tags with no
// entry behave like a 404 from the live API.
type fakeFactSource struct {
	responses map[string]*ConceptResponse
	calls     []string
}

func (f *fakeFactSource) CompanyConcept(_ context.Context, cik, tag string) (*ConceptResponse, error) {
	f.calls = append(f.calls, tag)
	resp, ok := f.responses[tag]
	if !ok {
		return nil, fmt.Errorf("company concept %s for CIK %s: SEC returned status 404", tag, cik)
	}
	return resp, nil
}

func quarterEntry(frame, end, filed, val string) ConceptEntry {
	return ConceptEntry{
		Start: "",
		End:   end,
		Val:   json.Number(val),
		Form:  "10-Q",
		Filed: filed,
		Frame: frame,
	}
}

func conceptResp(tag string, entries ...ConceptEntry) *ConceptResponse {
	return &ConceptResponse{
		Taxonomy: "us-gaap",
		Tag:      tag,
		Units:    map[string][]ConceptEntry{"USD": entries},
	}
}

func testTagConfig() *TagConfig {
	return &TagConfig{
		DefaultRevenueTags: []string{"Revenues"},
		FallbackRevenueTag: "Revenues",
		CommonMetrics: []MetricTag{
			{Label: MetricGrossProfit, Tag: "GrossProfit"},
		},
	}
}

func TestBuildMetricSeries_LatestFiledWins(t *testing.T) {
	end := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
	original := FactRecord{Frame: "CY2021Q2", PeriodEnd: end,
		Value: decimal.NewFromInt(100), Filed: time.Date(2021, 7, 30, 0, 0, 0, 0, time.UTC)}
	restated := FactRecord{Frame: "CY2021Q2", PeriodEnd: end,
		Value: decimal.NewFromInt(110), Filed: time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)}
	other := FactRecord{Frame: "CY2021Q3", PeriodEnd: time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC),
		Value: decimal.NewFromInt(120), Filed: time.Date(2021, 10, 29, 0, 0, 0, 0, time.UTC)}

	// restated arrives before the original; filing date decides, not order
	series := BuildMetricSeries([]FactRecord{restated, original, other})

	if len(series) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(series))
	}
	if got := series["CY2021Q2"].Value.String(); got != "110" {
		t.Errorf("CY2021Q2 value = %s, want restated 110", got)
	}
	if got := series["CY2021Q3"].Value.String(); got != "120" {
		t.Errorf("CY2021Q3 value = %s, want 120", got)
	}
}

func TestNewQuarterlyTable_SortAndDedupe(t *testing.T) {
	rows := []Row{
		{Frame: "CY2021Q2", PeriodEnd: time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)},
		{Frame: "CY2021Q4", PeriodEnd: time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)},
		{Frame: "CY2021Q3", PeriodEnd: time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC)},
		{Frame: "CY2021Q3", PeriodEnd: time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC)}, // duplicate
	}

	table := NewQuarterlyTable([]string{MetricRevenue}, rows)

	want := []string{"CY2021Q4", "CY2021Q3", "CY2021Q2"}
	if diff := cmp.Diff(want, table.Frames()); diff != "" {
		t.Errorf("Frames mismatch (-want +got):\n%s", diff)
	}

	if _, ok := table.Row("CY2021Q3"); !ok {
		t.Error("Deduplicated frame should still be addressable")
	}
	if _, ok := table.Row("CY2020Q1"); ok {
		t.Error("Absent frame should not resolve")
	}
}

func TestBuild_OuterJoinAndRequiredDrop(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{
		"Revenues": conceptResp("Revenues",
			quarterEntry("CY2021Q1", "2021-03-31", "2021-04-30", "1000"),
			quarterEntry("CY2021Q2", "2021-06-30", "2021-07-30", "1200"),
			quarterEntry("CY2021Q3", "2021-09-30", "2021-10-29", "1400"),
		),
		"GrossProfit": conceptResp("GrossProfit",
			quarterEntry("CY2021Q1", "2021-03-31", "2021-04-30", "500"),
			quarterEntry("CY2021Q2", "2021-06-30", "2021-07-30", "600"),
			// no Q3 gross profit, and a quarter with no revenue at all
			quarterEntry("CY2020Q4", "2020-12-31", "2021-02-01", "450"),
		),
	}}

	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(testTagConfig()))
	result, err := builder.Build(context.Background(), BuildOptions{
		CIK:                "320193",
		RevenueTag:         "Revenues",
		IncludeGrossProfit: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// CY2021Q3 lacks gross profit and CY2020Q4 lacks revenue: both dropped
	want := []string{"CY2021Q2", "CY2021Q1"}
	if diff := cmp.Diff(want, result.Table.Frames()); diff != "" {
		t.Errorf("Frames mismatch (-want +got):\n%s", diff)
	}

	wantMetrics := []string{MetricRevenue, MetricGrossProfit, MetricGrossMargin}
	if diff := cmp.Diff(wantMetrics, result.Table.Metrics); diff != "" {
		t.Errorf("Metrics mismatch (-want +got):\n%s", diff)
	}

	row, _ := result.Table.Row("CY2021Q2")
	margin := row.Value(MetricGrossMargin)
	if !margin.Valid {
		t.Fatal("Gross margin should be derived when both inputs are present")
	}
	if margin.Decimal.String() != "0.5" {
		t.Errorf("Gross margin = %s, want 0.5", margin.Decimal)
	}
}

func TestBuild_WithoutGrossProfit(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{
		"Revenues": conceptResp("Revenues",
			quarterEntry("CY2021Q3", "2021-09-30", "2021-10-29", "1400"),
		),
	}}

	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(testTagConfig()))
	result, err := builder.Build(context.Background(), BuildOptions{CIK: "320193", RevenueTag: "Revenues"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// gross profit was not requested: not fetched, not a column
	if diff := cmp.Diff([]string{MetricRevenue}, result.Table.Metrics); diff != "" {
		t.Errorf("Metrics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Revenues"}, source.calls); diff != "" {
		t.Errorf("Fetched tags mismatch (-want +got):\n%s", diff)
	}
	// the revenue-only row survives the required-metric check
	if len(result.Table.Rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(result.Table.Rows))
	}
}

func TestBuild_MetricFetchFailureDegrades(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{
		"Revenues": conceptResp("Revenues",
			quarterEntry("CY2021Q2", "2021-06-30", "2021-07-30", "1200"),
		),
		// GrossProfit missing: the fake returns an error for it
	}}

	cfg := testTagConfig()
	cfg.CommonMetrics = append(cfg.CommonMetrics, MetricTag{Label: MetricNetIncome, Tag: "NetIncomeLoss"})

	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(cfg))
	result, err := builder.Build(context.Background(), BuildOptions{CIK: "320193", RevenueTag: "Revenues"})
	if err != nil {
		t.Fatalf("A failed metric must not fail the build: %v", err)
	}

	if _, ok := result.MetricErrors[MetricNetIncome]; !ok {
		t.Error("Expected a recorded error for the failed metric")
	}

	row, ok := result.Table.Row("CY2021Q2")
	if !ok {
		t.Fatal("Revenue row should survive a failed optional metric")
	}
	if row.Value(MetricNetIncome).Valid {
		t.Error("Failed metric should read as unavailable, not zero")
	}
}

func TestBuild_ZeroRevenueKeepsRowWithoutMargin(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{
		"Revenues": conceptResp("Revenues",
			quarterEntry("CY2021Q2", "2021-06-30", "2021-07-30", "0"),
		),
		"GrossProfit": conceptResp("GrossProfit",
			quarterEntry("CY2021Q2", "2021-06-30", "2021-07-30", "600"),
		),
	}}

	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(testTagConfig()))
	result, err := builder.Build(context.Background(), BuildOptions{
		CIK:                "320193",
		RevenueTag:         "Revenues",
		IncludeGrossProfit: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	row, ok := result.Table.Row("CY2021Q2")
	if !ok {
		t.Fatal("Zero revenue is still a present value; the row must survive")
	}
	if row.Value(MetricGrossMargin).Valid {
		t.Error("Gross margin must not be derived from zero revenue")
	}
}

func TestBuild_EmptyTableIsNotAnError(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{
		// only annual frames: everything filtered out
		"Revenues": conceptResp("Revenues",
			ConceptEntry{End: "2021-12-31", Val: json.Number("4000"), Form: "10-K", Filed: "2022-02-01", Frame: "CY2021"},
		),
	}}

	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(testTagConfig()))
	result, err := builder.Build(context.Background(), BuildOptions{CIK: "320193", RevenueTag: "Revenues"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !result.Table.Empty() {
		t.Errorf("Expected an empty table, got %d rows", len(result.Table.Rows))
	}
}

func TestBuild_RequiresCIK(t *testing.T) {
	builder := NewQuarterlySeriesBuilder(&fakeFactSource{}, WithBuilderTagConfig(testTagConfig()))
	if _, err := builder.Build(context.Background(), BuildOptions{}); err == nil {
		t.Error("Build without a CIK should fail")
	}
}

func TestBuild_DefaultRevenueTag(t *testing.T) {
	source := &fakeFactSource{responses: map[string]*ConceptResponse{}}
	builder := NewQuarterlySeriesBuilder(source, WithBuilderTagConfig(testTagConfig()))

	result, err := builder.Build(context.Background(), BuildOptions{CIK: "320193"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.RevenueTag != "Revenues" {
		t.Errorf("RevenueTag = %q, want config fallback Revenues", result.RevenueTag)
	}
}
