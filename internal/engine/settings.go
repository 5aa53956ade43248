package engine

import (
	"log/slog"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultCoarseIndexGranularity is how many pieces a suspicious mark
	// range is split into at each step.
	DefaultCoarseIndexGranularity = 8

	// DefaultMinMarksForSeek is the largest gap between two selected ranges
	// that is still read through instead of seeking over.
	DefaultMinMarksForSeek = 0
)

// Settings controls planning. The zero value is not usable; start from
// DefaultSettings or pass Options to NewPlanner.
type Settings struct {
	// MaxThreads bounds how many parts are planned concurrently.
	MaxThreads int

	// ForcePrimaryKey fails planning when the primary key cannot narrow
	// the scan.
	ForcePrimaryKey bool

	// ForceIndexByDate fails planning of a partitioned table when the
	// partition min/max index cannot narrow the scan.
	ForceIndexByDate bool

	// MaxMarksToRead limits the marks selected over all parts. Zero means
	// no limit.
	MaxMarksToRead int64

	// CoarseIndexGranularity is the split factor of the range search.
	// Values below 2 are raised to 2.
	CoarseIndexGranularity int

	// MinMarksForSeek merges selected ranges separated by at most this
	// many marks.
	MinMarksForSeek int

	// ExactTupleRanges evaluates key ranges with the exact tuple-range
	// decomposition instead of a single bounding box.
	ExactTupleRanges bool

	// Trace records every range decision in the plan.
	Trace bool
}

// DefaultSettings returns the settings used when no Option overrides them.
func DefaultSettings() Settings {
	return Settings{
		MaxThreads:             runtime.GOMAXPROCS(0),
		CoarseIndexGranularity: DefaultCoarseIndexGranularity,
		MinMarksForSeek:        DefaultMinMarksForSeek,
	}
}

// Option allows configuration of planner parameters.
type Option func(*Planner)

// WithMaxThreads sets how many parts are planned in parallel.
//
// Default: GOMAXPROCS
// Use WithMaxThreads(1) for strictly sequential planning.
func WithMaxThreads(n int) Option {
	return func(p *Planner) {
		p.settings.MaxThreads = n
	}
}

// WithForcePrimaryKey makes planning fail with INDEX_NOT_USED when the
// predicate does not restrict the primary key.
func WithForcePrimaryKey(force bool) Option {
	return func(p *Planner) {
		p.settings.ForcePrimaryKey = force
	}
}

// WithForceIndexByDate makes planning of partitioned tables fail with
// INDEX_NOT_USED when the predicate does not restrict the partition key
// columns.
func WithForceIndexByDate(force bool) Option {
	return func(p *Planner) {
		p.settings.ForceIndexByDate = force
	}
}

// WithMaxMarksToRead limits the total number of selected marks.
func WithMaxMarksToRead(n int64) Option {
	return func(p *Planner) {
		p.settings.MaxMarksToRead = n
	}
}

// WithCoarseIndexGranularity sets the split factor of the range search.
func WithCoarseIndexGranularity(n int) Option {
	return func(p *Planner) {
		p.settings.CoarseIndexGranularity = n
	}
}

// WithMinMarksForSeek sets the largest gap merged into one range.
func WithMinMarksForSeek(n int) Option {
	return func(p *Planner) {
		p.settings.MinMarksForSeek = n
	}
}

// WithExactTupleRanges enables the exact tuple-range evaluator.
func WithExactTupleRanges(exact bool) Option {
	return func(p *Planner) {
		p.settings.ExactTupleRanges = exact
	}
}

// WithTrace records each range decision in PartPlan.Trace.
func WithTrace(trace bool) Option {
	return func(p *Planner) {
		p.settings.Trace = trace
	}
}

// WithSettings replaces all settings at once.
func WithSettings(s Settings) Option {
	return func(p *Planner) {
		p.settings = s
	}
}

// WithLogger sets the planner logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = l
	}
}

// WithRegisterer registers planner metrics with reg. Without it metrics
// are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Planner) {
		p.registerer = reg
	}
}

// WithQueryIDGenerator overrides how query IDs are produced.
func WithQueryIDGenerator(gen QueryIDGenerator) Option {
	return func(p *Planner) {
		p.ids = gen
	}
}

// WithConditionCache shares compiled conditions between planners.
func WithConditionCache(c *ConditionCache) Option {
	return func(p *Planner) {
		p.cache = c
	}
}

func (s Settings) normalized() Settings {
	if s.MaxThreads < 1 {
		s.MaxThreads = 1
	}
	if s.CoarseIndexGranularity < 2 {
		s.CoarseIndexGranularity = 2
	}
	if s.MinMarksForSeek < 0 {
		s.MinMarksForSeek = 0
	}
	return s
}
