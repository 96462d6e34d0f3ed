package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	legacymodels "forestclient/internal/legacy/models"
	"forestclient/internal/submission/models"
	pstrings "forestclient/pkg/platform/strings"
)

// PersistStage names the write that failed.
type PersistStage string

const (
	StageClient   PersistStage = "client"
	StageLocation PersistStage = "location"
	StageContact  PersistStage = "contact"
)

// PersistError reports a partial write. Rows written before the failure are
// left in place; ClientNumber is empty when the client insert itself failed.
type PersistError struct {
	SubmissionID models.SubmissionID
	Stage        PersistStage
	Index        int
	ClientNumber legacymodels.ClientNumber
	Err          error
}

func (e *PersistError) Error() string {
	if e.ClientNumber == "" {
		return fmt.Sprintf("persist submission %d: %s: %v", e.SubmissionID, e.Stage, e.Err)
	}
	return fmt.Sprintf("persist submission %d: %s %d of client %s: %v",
		e.SubmissionID, e.Stage, e.Index, e.ClientNumber, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Persister writes an approved submission to the legacy store: the client,
// then every location, then every contact with its location links. Writes
// are append-only and stop at the first failure.
type Persister struct {
	legacy    LegacyWriter
	createdBy string
	logger    *slog.Logger
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

func WithPersisterLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// WithCreatedBy sets the audit user recorded on legacy rows.
func WithCreatedBy(user string) PersisterOption {
	return func(p *Persister) {
		if user != "" {
			p.createdBy = user
		}
	}
}

func NewPersister(legacy LegacyWriter, opts ...PersisterOption) *Persister {
	p := &Persister{
		legacy:    legacy,
		createdBy: "IDIR\\FORESTCLIENT",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist writes sub and returns the new client number. On failure the
// error is a *PersistError.
func (p *Persister) Persist(ctx context.Context, sub *models.Submission, info models.SubmissionInformation) (legacymodels.ClientNumber, error) {
	number, err := p.legacy.InsertClient(ctx, p.client(sub, info))
	if err != nil {
		return "", &PersistError{SubmissionID: sub.ID, Stage: StageClient, Err: err}
	}

	for i, addr := range sub.Addresses {
		if _, err := p.legacy.InsertLocation(ctx, number, p.location(i, addr)); err != nil {
			return number, &PersistError{SubmissionID: sub.ID, Stage: StageLocation, Index: i, ClientNumber: number, Err: err}
		}
	}

	for i, contact := range sub.Contacts {
		if _, err := p.legacy.InsertContact(ctx, number, p.contact(sub, contact)); err != nil {
			return number, &PersistError{SubmissionID: sub.ID, Stage: StageContact, Index: i, ClientNumber: number, Err: err}
		}
	}

	p.logger.InfoContext(ctx, "submission persisted",
		"submission_id", sub.ID,
		"client_number", number,
		"locations", len(sub.Addresses),
		"contacts", len(sub.Contacts),
	)
	return number, nil
}

func (p *Persister) client(sub *models.Submission, info models.SubmissionInformation) legacymodels.ForestClient {
	c := legacymodels.ForestClient{
		ClientName:     strings.ToUpper(info.LegalName),
		ClientTypeCode: info.ClientType.LegacyCode(),
		Birthdate:      info.Birthdate,
		Comment:        fmt.Sprintf("Created from submission %d", sub.ID),
		CreatedBy:      p.createdBy,
	}
	if info.ClientType.Individual() {
		parts := SplitName(info.LegalName)
		last, first := info.LastName, info.FirstName
		if last == "" {
			last = parts[0]
		}
		if first == "" {
			first = parts[1]
		}
		c.ClientName = strings.ToUpper(last)
		c.LegalFirstName = strings.ToUpper(first)
		c.LegalMiddleName = strings.ToUpper(parts[2])
	}
	if typeCode, number, ok := info.RegistryParts(); ok {
		c.RegistryTypeCode = typeCode
		c.RegistrationNumber = number
	}
	return c
}

func (p *Persister) location(i int, addr models.Address) legacymodels.Location {
	return legacymodels.Location{
		LocationCode:  legacymodels.LocationCode(i),
		Name:          addr.Name,
		AddressOne:    addr.StreetAddress,
		AddressTwo:    addr.ComplementaryAddress,
		City:          addr.City,
		Province:      addr.Province,
		PostalCode:    strings.ReplaceAll(strings.ToUpper(addr.PostalCode), " ", ""),
		Country:       addr.Country,
		BusinessPhone: addr.BusinessPhone,
		Email:         addr.Email,
		CreatedBy:     p.createdBy,
	}
}

func (p *Persister) contact(sub *models.Submission, contact models.Contact) legacymodels.Contact {
	var codes []string
	for _, name := range contact.AddressNames {
		if idx := sub.AddressIndex(name); idx >= 0 {
			codes = append(codes, legacymodels.LocationCode(idx))
		}
	}
	return legacymodels.Contact{
		ContactCode:   contact.ContactType,
		Name:          contact.FullName(),
		Phone:         contact.Phone,
		Email:         contact.Email,
		CreatedBy:     p.createdBy,
		LocationCodes: pstrings.SortedSet(codes...),
	}
}
