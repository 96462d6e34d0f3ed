package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	legacymodels "forestclient/internal/legacy/models"
	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/submission/models"
	pstrings "forestclient/pkg/platform/strings"
)

// Matcher fields.
const (
	FieldClientName          = "clientName"
	FieldIncorporationNumber = "incorporationNumber"
	FieldIndividual          = "individual"
)

// ErrAllMatchersFailed is returned when every matcher lookup degraded.
var ErrAllMatchersFailed = errors.New("all matcher lookups failed")

// MatcherResult lists the legacy client numbers found for one field. Values
// are a sorted set. Failed marks a degraded lookup and Unchecked a lookup that
// could not run for lack of input; in both cases an empty result means
// "unknown", not "no match".
type MatcherResult struct {
	Field     string
	Values    []string
	Failed    bool
	Unchecked bool
}

// NewMatcherResult builds a result, normalizing values to a sorted set.
func NewMatcherResult(field string, values ...string) MatcherResult {
	return MatcherResult{Field: field, Values: pstrings.SortedSet(values...)}
}

func (r MatcherResult) HasMatch() bool {
	return len(r.Values) > 0
}

// Matcher compares a submission's identity with existing legacy clients.
type Matcher struct {
	legacy    LegacyLookup
	threshold float64
	logger    *slog.Logger
	metrics   *procmetrics.Metrics
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithNameThreshold sets the minimum Jaro-Winkler similarity for a name match.
func WithNameThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

func WithMatcherLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

func WithMatcherMetrics(metrics *procmetrics.Metrics) MatcherOption {
	return func(m *Matcher) {
		m.metrics = metrics
	}
}

func NewMatcher(legacy LegacyLookup, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		legacy:    legacy,
		threshold: 0.85,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fields returns the matcher fields that apply to info, in a stable order.
// An individual without a birthdate falls back to the fuzzy name match; one
// with neither keeps the individual field, which then reports Unchecked.
func (m *Matcher) Fields(info models.SubmissionInformation) []string {
	person := info.ClientType == models.ClientIndividual
	_, _, keyed := individualKey(info)
	name := matchName(info)

	var fields []string
	if name != "" && (!person || !keyed) {
		fields = append(fields, FieldClientName)
	}
	if info.IncorporationNumber != "" {
		fields = append(fields, FieldIncorporationNumber)
	}
	if (keyed && info.ClientType.Individual()) || (person && name == "") {
		fields = append(fields, FieldIndividual)
	}
	return fields
}

// Match runs every applicable field concurrently. Lookups that fail degrade to
// empty results; only when all of them fail is ErrAllMatchersFailed returned.
func (m *Matcher) Match(ctx context.Context, info models.SubmissionInformation) ([]MatcherResult, error) {
	fields := m.Fields(info)
	results := make([]MatcherResult, len(fields))

	var wg sync.WaitGroup
	for i, field := range fields {
		wg.Go(func() {
			results[i] = m.MatchField(ctx, field, info)
		})
	}
	wg.Wait()

	if AllFailed(results) {
		return results, ErrAllMatchersFailed
	}
	return results, nil
}

// AllFailed reports whether results is non-empty and every lookup degraded.
func AllFailed(results []MatcherResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Failed {
			return false
		}
	}
	return true
}

// MatchField runs the lookup for one field. It never returns an error: a
// failed lookup is logged and reported through MatcherResult.Failed.
func (m *Matcher) MatchField(ctx context.Context, field string, info models.SubmissionInformation) MatcherResult {
	var (
		candidates []legacymodels.Candidate
		err        error
	)
	switch field {
	case FieldClientName:
		name := matchName(info)
		candidates, err = m.legacy.MatchByName(ctx, name)
		candidates = m.similarNames(name, candidates)
	case FieldIncorporationNumber:
		candidates, err = m.legacy.MatchByIncorporation(ctx, info.IncorporationNumber)
	case FieldIndividual:
		first, last, ok := individualKey(info)
		if !ok {
			m.logger.WarnContext(ctx, "individual match skipped: name or birthdate missing",
				"submission_id", info.SubmissionID,
			)
			return MatcherResult{Field: field, Unchecked: true}
		}
		candidates, err = m.legacy.MatchIndividual(ctx, first, last, *info.Birthdate)
	default:
		m.logger.WarnContext(ctx, "unknown matcher field", "field", field)
		return MatcherResult{Field: field}
	}

	if err != nil {
		m.logger.WarnContext(ctx, "matcher lookup failed",
			"submission_id", info.SubmissionID,
			"field", field,
			"error", err,
		)
		m.metrics.IncMatcherFailure(field)
		return MatcherResult{Field: field, Failed: true}
	}

	numbers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Active() {
			numbers = append(numbers, string(c.ClientNumber))
		}
	}
	return NewMatcherResult(field, numbers...)
}

func (m *Matcher) similarNames(name string, candidates []legacymodels.Candidate) []legacymodels.Candidate {
	want := pstrings.NormalizeName(name)
	jw := metrics.NewJaroWinkler()
	var out []legacymodels.Candidate
	for _, c := range candidates {
		if strutil.Similarity(want, pstrings.NormalizeName(candidateName(c)), jw) >= m.threshold {
			out = append(out, c)
		}
	}
	return out
}

// individualKey resolves the first name, last name and birthdate used by the
// individual lookup. ok is false when any of them is missing.
func individualKey(info models.SubmissionInformation) (first, last string, ok bool) {
	if info.Birthdate == nil {
		return "", "", false
	}
	first, last = info.FirstName, info.LastName
	if first == "" || last == "" {
		parts := SplitName(info.LegalName)
		if last == "" {
			last = parts[0]
		}
		if first == "" {
			first = parts[1]
		}
	}
	return first, last, first != "" && last != ""
}

func matchName(info models.SubmissionInformation) string {
	if info.LegalName != "" {
		return info.LegalName
	}
	return strings.TrimSpace(info.FirstName + " " + info.LastName)
}

// candidateName is the name compared against a submission. Legacy individuals
// keep the last name in ClientName and the first name apart.
func candidateName(c legacymodels.Candidate) string {
	if c.LegalFirstName == "" {
		return c.ClientName
	}
	return c.LegalFirstName + " " + c.ClientName
}
