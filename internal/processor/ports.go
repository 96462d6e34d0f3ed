package processor

import (
	"context"
	"time"

	legacymodels "forestclient/internal/legacy/models"
	"forestclient/internal/mail"
	"forestclient/internal/processor/events"
	"forestclient/internal/registry"
	"forestclient/internal/submission/models"
)

// SubmissionStore reads submissions and records their outcome.
type SubmissionStore interface {
	LoadDetail(ctx context.Context, id models.SubmissionID) (*models.Submission, error)
	UpdateStatus(ctx context.Context, id models.SubmissionID, status models.Status) error
	SaveMatchers(ctx context.Context, id models.SubmissionID, matchers map[string]string) error
}

// LegacyLookup finds existing legacy clients.
type LegacyLookup interface {
	MatchByName(ctx context.Context, name string) ([]legacymodels.Candidate, error)
	MatchByIncorporation(ctx context.Context, incorporationNumber string) ([]legacymodels.Candidate, error)
	MatchIndividual(ctx context.Context, firstName, lastName string, birthdate time.Time) ([]legacymodels.Candidate, error)
}

// LegacyWriter appends approved clients to the legacy store.
type LegacyWriter interface {
	InsertClient(ctx context.Context, client legacymodels.ForestClient) (legacymodels.ClientNumber, error)
	InsertLocation(ctx context.Context, clientNumber legacymodels.ClientNumber, loc legacymodels.Location) (string, error)
	InsertContact(ctx context.Context, clientNumber legacymodels.ClientNumber, contact legacymodels.Contact) (legacymodels.ContactID, error)
}

// LegacyStore is the full legacy client store.
type LegacyStore interface {
	LegacyLookup
	LegacyWriter
}

// Registry resolves registry documents for registered businesses.
type Registry interface {
	Lookup(ctx context.Context, businessID string) (*registry.Document, error)
}

// Mailer sends a templated email and returns the transaction id.
type Mailer interface {
	SendEmail(ctx context.Context, req mail.EmailRequest) (string, error)
}

// EventPublisher emits terminal submission events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Locker is a cross-replica mutual exclusion primitive.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
