package edgar

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

//go:embed tag_mappings.json
var tagMappingsJSON []byte

// MetricTag binds a display label to the us-gaap tag it is fetched under
type MetricTag struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// MetricRevenue is the label of the always-required revenue metric
const MetricRevenue = "Revenue"

// MetricGrossProfit is the label of the optionally-required gross profit metric
const MetricGrossProfit = "Gross Profit"

// MetricGrossMargin is the label of the derived gross margin column
const MetricGrossMargin = "Gross Margin"

// MetricNetIncome and MetricCashFlow are the labels of the other common metrics
const (
	MetricNetIncome = "Net Income"
	MetricCashFlow  = "Cash Flow"
)

// TagConfig holds revenue tag preferences per company, the global fallback
// candidates, and the tags used for the non-revenue metrics. It is injected
// into the resolver and builder rather than hardcoded at call sites.
type TagConfig struct {
	Schema             string              `json:"$schema"`
	Description        string              `json:"description"`
	Version            string              `json:"version"`
	CompanyRevenueTags map[string][]string `json:"companyRevenueTags"`
	DefaultRevenueTags []string            `json:"defaultRevenueTags"`
	FallbackRevenueTag string              `json:"fallbackRevenueTag"`
	CommonMetrics      []MetricTag         `json:"commonMetrics"`
}

var defaultTagConfig *TagConfig

func init() {
	var err error
	defaultTagConfig, err = loadTagConfig(tagMappingsJSON)
	if err != nil {
		panic(fmt.Sprintf("Failed to load tag mappings: %v", err))
	}
}

func loadTagConfig(data []byte) (*TagConfig, error) {
	var cfg TagConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tag_mappings.json: %w", err)
	}
	if cfg.FallbackRevenueTag == "" {
		return nil, fmt.Errorf("tag config has no fallback revenue tag")
	}
	return &cfg, nil
}

// DefaultTagConfig returns the embedded tag configuration
func DefaultTagConfig() *TagConfig {
	return defaultTagConfig
}

// TagProber is the liveness-probe side of the Client
type TagProber interface {
	ProbeTag(ctx context.Context, cik, tag string) bool
}

// TagResolver chooses the revenue tag for a company. Different filers report
// economically equivalent revenue under different us-gaap tags, so the
// resolver walks the company's preferred candidates, then the global
// fallbacks, probing each against the source, and finally degrades to the
// configured default. It never fails.
type TagResolver struct {
	prober TagProber
	cfg    *TagConfig
	log    zerolog.Logger
}

// ResolverOption customizes a TagResolver
type ResolverOption func(*TagResolver)

// WithTagConfig overrides the embedded tag configuration
func WithTagConfig(cfg *TagConfig) ResolverOption {
	return func(r *TagResolver) { r.cfg = cfg }
}

// WithResolverLogger attaches a logger for probe tracing
func WithResolverLogger(log zerolog.Logger) ResolverOption {
	return func(r *TagResolver) { r.log = log }
}

// NewTagResolver creates a resolver backed by the given prober
func NewTagResolver(prober TagProber, opts ...ResolverOption) *TagResolver {
	r := &TagResolver{
		prober: prober,
		cfg:    DefaultTagConfig(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveRevenueTag returns the revenue tag to use for a company.
// Preference order: the company's configured candidates, then the global
// fallback list, each probed in order; the configured default is returned
// unconditionally when every probe fails.
//
// Probe results are not cached, so repeated resolution for the same company
// re-probes. A successful probe only proves the tag exists for the filer; it
// may still hold no quarterly-framed data.
func (r *TagResolver) ResolveRevenueTag(ctx context.Context, companyName, cik string) string {
	if candidates, ok := r.cfg.CompanyRevenueTags[companyName]; ok {
		for _, tag := range candidates {
			if r.prober.ProbeTag(ctx, cik, tag) {
				r.log.Debug().Str("company", companyName).Str("tag", tag).Msg("resolved revenue tag from company preferences")
				return tag
			}
		}
	}

	for _, tag := range r.cfg.DefaultRevenueTags {
		if r.prober.ProbeTag(ctx, cik, tag) {
			r.log.Debug().Str("company", companyName).Str("tag", tag).Msg("resolved revenue tag from global fallbacks")
			return tag
		}
	}

	r.log.Debug().Str("company", companyName).Str("tag", r.cfg.FallbackRevenueTag).Msg("all probes failed, using default revenue tag")
	return r.cfg.FallbackRevenueTag
}

// Metrics returns the requested metric set: revenue under the resolved tag
// followed by the configured common metrics. When includeGrossProfit is
// false the gross profit metric is left out entirely (not all filers
// disclose it).
func (cfg *TagConfig) Metrics(revenueTag string, includeGrossProfit bool) []MetricTag {
	metrics := []MetricTag{{Label: MetricRevenue, Tag: revenueTag}}
	for _, m := range cfg.CommonMetrics {
		if m.Label == MetricGrossProfit && !includeGrossProfit {
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics
}
