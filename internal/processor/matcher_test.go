package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	legacymodels "forestclient/internal/legacy/models"
	legacystore "forestclient/internal/legacy/store"
	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/submission/submissiontest"
)

// failingLookup fails the lookups named in failing and delegates the rest.
type failingLookup struct {
	LegacyLookup
	failing map[string]bool
}

var errLegacyDown = errors.New("legacy database unavailable")

func (f failingLookup) MatchByName(ctx context.Context, name string) ([]legacymodels.Candidate, error) {
	if f.failing[FieldClientName] {
		return nil, errLegacyDown
	}
	return f.LegacyLookup.MatchByName(ctx, name)
}

func (f failingLookup) MatchByIncorporation(ctx context.Context, number string) ([]legacymodels.Candidate, error) {
	if f.failing[FieldIncorporationNumber] {
		return nil, errLegacyDown
	}
	return f.LegacyLookup.MatchByIncorporation(ctx, number)
}

func (f failingLookup) MatchIndividual(ctx context.Context, first, last string, birthdate time.Time) ([]legacymodels.Candidate, error) {
	if f.failing[FieldIndividual] {
		return nil, errLegacyDown
	}
	return f.LegacyLookup.MatchIndividual(ctx, first, last, birthdate)
}

type MatcherSuite struct {
	suite.Suite
	legacy   *legacystore.InMemoryStore
	metrics  *procmetrics.Metrics
	birthday time.Time
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.birthday = time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC)
	s.metrics = procmetrics.New(prometheus.NewRegistry())
	s.legacy = legacystore.NewInMemoryStore()
	s.legacy.Seed(
		legacymodels.Candidate{ClientNumber: "00000001", ClientName: "CEDAR RIDGE LOGGING LTD", ClientTypeCode: "C", StatusCode: legacymodels.StatusActive, RegistryTypeCode: "BC", RegistrationNumber: "0772006"},
		legacymodels.Candidate{ClientNumber: "00000002", ClientName: "CEDAR RIDGE LOGGING LTD", ClientTypeCode: "C", StatusCode: legacymodels.StatusDeactivated},
		legacymodels.Candidate{ClientNumber: "00000003", ClientName: "SPRUCE HOLLOW TIMBER", ClientTypeCode: "C", StatusCode: legacymodels.StatusActive},
		legacymodels.Candidate{ClientNumber: "00000004", ClientName: "GREEN", LegalFirstName: "TEST", ClientTypeCode: "I", StatusCode: legacymodels.StatusActive, Birthdate: &s.birthday},
	)
}

func (s *MatcherSuite) matcher(lookup LegacyLookup, opts ...MatcherOption) *Matcher {
	opts = append([]MatcherOption{
		WithMatcherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMatcherMetrics(s.metrics),
	}, opts...)
	return NewMatcher(lookup, opts...)
}

func (s *MatcherSuite) TestFields() {
	m := s.matcher(s.legacy)

	s.Equal([]string{FieldClientName, FieldIncorporationNumber}, m.Fields(submissiontest.New(1).Information()))
	s.Equal([]string{FieldClientName}, m.Fields(submissiontest.New(1, submissiontest.Unregistered()).Information()))
	s.Equal([]string{FieldIndividual}, m.Fields(submissiontest.New(1, submissiontest.Individual("Test", "Green", s.birthday)).Information()))
}

func (s *MatcherSuite) TestMatchFindsActiveClientsOnly() {
	results, err := s.matcher(s.legacy).Match(context.Background(), submissiontest.New(1).Information())
	s.Require().NoError(err)
	s.Require().Len(results, 2)

	s.Equal(FieldClientName, results[0].Field)
	s.Equal([]string{"00000001"}, results[0].Values)
	s.Equal(FieldIncorporationNumber, results[1].Field)
	s.Equal([]string{"00000001"}, results[1].Values)
}

func (s *MatcherSuite) TestNameThreshold() {
	info := submissiontest.New(1, submissiontest.Unregistered(), submissiontest.WithLegalName("Cedar Ridge Loging Ltd")).Information()

	loose := s.matcher(s.legacy).MatchField(context.Background(), FieldClientName, info)
	s.True(loose.HasMatch(), "a one-letter typo should match at the default threshold")

	strict := s.matcher(s.legacy, WithNameThreshold(1)).MatchField(context.Background(), FieldClientName, info)
	s.False(strict.HasMatch())

	unrelated := s.matcher(s.legacy).MatchField(context.Background(), FieldClientName,
		submissiontest.New(1, submissiontest.WithLegalName("Northern Lights Aviation")).Information())
	s.False(unrelated.HasMatch())
}

func (s *MatcherSuite) TestIndividualMatch() {
	info := submissiontest.New(1, submissiontest.Individual("Test", "Green", s.birthday)).Information()
	r := s.matcher(s.legacy).MatchField(context.Background(), FieldIndividual, info)
	s.Equal([]string{"00000004"}, r.Values)

	other := submissiontest.New(1, submissiontest.Individual("Test", "Green", s.birthday.AddDate(1, 0, 0))).Information()
	s.False(s.matcher(s.legacy).MatchField(context.Background(), FieldIndividual, other).HasMatch())
}

func (s *MatcherSuite) TestIndividualWithoutBirthdate() {
	m := s.matcher(s.legacy)

	s.Run("falls back to the name match", func() {
		sub := submissiontest.New(1, submissiontest.Individual("Test", "Green", s.birthday))
		sub.Business.Birthdate = nil
		info := sub.Information()

		s.Equal([]string{FieldClientName}, m.Fields(info))
		results, err := m.Match(context.Background(), info)
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal([]string{"00000004"}, results[0].Values)
	})

	s.Run("reports unchecked when no name is known either", func() {
		sub := submissiontest.New(1, submissiontest.Individual("", "", s.birthday))
		sub.Business.LegalName = ""
		sub.Business.Birthdate = nil
		info := sub.Information()

		s.Equal([]string{FieldIndividual}, m.Fields(info))
		r := m.MatchField(context.Background(), FieldIndividual, info)
		s.True(r.Unchecked)
		s.False(r.Failed)
		s.False(r.HasMatch())
		s.Equal(OutcomeReview, Decide(info, Aggregate{Matches: []MatcherResult{r}}).Outcome)
	})
}

func (s *MatcherSuite) TestMatchIsIdempotent() {
	m := s.matcher(s.legacy)
	info := submissiontest.New(1).Information()
	first, err := m.Match(context.Background(), info)
	s.Require().NoError(err)
	for range 5 {
		again, err := m.Match(context.Background(), info)
		s.Require().NoError(err)
		s.Equal(first, again)
	}
}

func (s *MatcherSuite) TestFailedLookupDegrades() {
	lookup := failingLookup{LegacyLookup: s.legacy, failing: map[string]bool{FieldClientName: true}}
	results, err := s.matcher(lookup).Match(context.Background(), submissiontest.New(1).Information())
	s.Require().NoError(err)

	s.True(results[0].Failed)
	s.Empty(results[0].Values)
	s.False(results[1].Failed)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.MatcherFailures.WithLabelValues(FieldClientName)))
}

func (s *MatcherSuite) TestAllLookupsFailing() {
	lookup := failingLookup{LegacyLookup: s.legacy, failing: map[string]bool{
		FieldClientName:          true,
		FieldIncorporationNumber: true,
	}}
	results, err := s.matcher(lookup).Match(context.Background(), submissiontest.New(1).Information())
	s.ErrorIs(err, ErrAllMatchersFailed)
	s.True(AllFailed(results))
}

func TestAllFailed(t *testing.T) {
	if AllFailed(nil) {
		t.Fatal("no results is not a failure")
	}
	if AllFailed([]MatcherResult{{Failed: true}, {Field: FieldClientName}}) {
		t.Fatal("one healthy lookup is enough")
	}
	if !AllFailed([]MatcherResult{{Failed: true}}) {
		t.Fatal("expected all failed")
	}
}
