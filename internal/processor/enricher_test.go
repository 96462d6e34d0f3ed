package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forestclient/internal/registry"
	"forestclient/internal/submission/models"
	"forestclient/internal/submission/submissiontest"
)

type fakeRegistry struct {
	doc   *registry.Document
	err   error
	calls int
}

func (f *fakeRegistry) Lookup(_ context.Context, _ string) (*registry.Document, error) {
	f.calls++
	return f.doc, f.err
}

// pendingRegistry never produces a document; it returns once ctx is done.
type pendingRegistry struct{}

func (pendingRegistry) Lookup(ctx context.Context, _ string) (*registry.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testEnricher(reg Registry) *Enricher {
	return NewEnricher(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEnricher(t *testing.T) {
	ctx := context.Background()

	t.Run("found business carries standing", func(t *testing.T) {
		reg := &fakeRegistry{doc: &registry.Document{Business: registry.Business{Identifier: "BC0772006", GoodStanding: false}}}
		info := testEnricher(reg).Enrich(ctx, submissiontest.New(1).Information())
		assert.Equal(t, models.RegistryFound, info.RegistryStatus)
		assert.False(t, info.GoodStanding)
	})

	t.Run("not found", func(t *testing.T) {
		reg := &fakeRegistry{err: &registry.Error{Category: registry.ErrorNotFound, Message: "business BC0772006"}}
		info := testEnricher(reg).Enrich(ctx, submissiontest.New(1).Information())
		assert.Equal(t, models.RegistryNotFound, info.RegistryStatus)
	})

	t.Run("transient failure leaves status unknown", func(t *testing.T) {
		reg := &fakeRegistry{err: errors.New("connection reset")}
		info := testEnricher(reg).Enrich(ctx, submissiontest.New(1).Information())
		assert.Equal(t, models.RegistryUnknown, info.RegistryStatus)
		assert.True(t, info.GoodStanding)
	})

	t.Run("unregistered businesses are not looked up", func(t *testing.T) {
		reg := &fakeRegistry{}
		info := testEnricher(reg).Enrich(ctx, submissiontest.New(1, submissiontest.Unregistered()).Information())
		assert.Equal(t, models.RegistryUnchecked, info.RegistryStatus)
		assert.Zero(t, reg.calls)
	})

	t.Run("no registry configured", func(t *testing.T) {
		info := testEnricher(nil).Enrich(ctx, submissiontest.New(1).Information())
		assert.Equal(t, models.RegistryUnchecked, info.RegistryStatus)
	})

	t.Run("sole proprietor takes proprietor name", func(t *testing.T) {
		reg := &fakeRegistry{doc: &registry.Document{
			Business: registry.Business{Identifier: "FM0123456", GoodStanding: true},
			Parties: []registry.Party{{
				Officer: registry.Officer{FirstName: "Jamie", LastName: "Green", PartyType: "person"},
				Roles:   []registry.Role{{RoleType: "Proprietor"}},
			}},
		}}
		sub := submissiontest.New(1)
		sub.Business.ClientType = models.ClientRegisteredSoleProprietor
		sub.Business.IncorporationNumber = "FM0123456"

		info := testEnricher(reg).Enrich(ctx, sub.Information())
		require.Equal(t, models.RegistryFound, info.RegistryStatus)
		assert.Equal(t, "Jamie", info.FirstName)
		assert.Equal(t, "Green", info.LastName)
	})
}

func TestEnricherLookupTimeout(t *testing.T) {
	e := NewEnricher(pendingRegistry{}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	info := e.Enrich(context.Background(), submissiontest.New(1).Information())

	assert.Equal(t, models.RegistryUnknown, info.RegistryStatus)
	assert.Less(t, time.Since(start), 2*time.Second, "a slow registry must not hold the worker")
}
