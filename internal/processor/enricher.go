package processor

import (
	"context"
	"log/slog"
	"time"

	"forestclient/internal/registry"
	"forestclient/internal/submission/models"
)

// Enricher fills in registry facts for registered businesses. Registry
// failures other than "not found" leave the status unknown so a transient
// outage never causes a rejection.
type Enricher struct {
	registry Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithLookupTimeout bounds a single registry lookup, including any polling
// for a pending document.
func WithLookupTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewEnricher(reg Registry, logger *slog.Logger, opts ...EnricherOption) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{registry: reg, timeout: 15 * time.Second, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns info updated with the registry's view of the business.
func (e *Enricher) Enrich(ctx context.Context, info models.SubmissionInformation) models.SubmissionInformation {
	if e.registry == nil || info.BusinessType != models.BusinessRegistered || info.IncorporationNumber == "" {
		return info
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	doc, err := e.registry.Lookup(lookupCtx, info.IncorporationNumber)
	switch {
	case registry.IsNotFound(err):
		e.logger.InfoContext(ctx, "business not found in registry",
			"submission_id", info.SubmissionID,
			"incorporation_number", info.IncorporationNumber,
		)
		return info.WithRegistryStatus(models.RegistryNotFound)
	case err != nil:
		e.logger.WarnContext(ctx, "registry lookup failed",
			"submission_id", info.SubmissionID,
			"incorporation_number", info.IncorporationNumber,
			"error", err,
		)
		return info.WithRegistryStatus(models.RegistryUnknown)
	}

	info = info.WithRegistryStatus(models.RegistryFound).WithGoodStanding(doc.Business.GoodStanding)
	if info.ClientType == models.ClientRegisteredSoleProprietor {
		if owner, ok := doc.Proprietor(); ok {
			info = info.WithProprietor(owner.FirstName, owner.LastName)
		}
	}
	return info
}
