// Package submissiontest builds submissions for tests.
package submissiontest

import (
	"time"

	"forestclient/internal/submission/models"
)

// Option mutates a fixture submission.
type Option func(*models.Submission)

// New returns a valid, registered corporation submission with two locations
// and three contacts. Options are applied in order.
func New(id models.SubmissionID, opts ...Option) *models.Submission {
	s := &models.Submission{
		ID:     id,
		Status: models.StatusSubmitted,
		Type:   models.TypePendingProcessing,
		Business: models.Business{
			BusinessType:        models.BusinessRegistered,
			ClientType:          models.ClientCorporation,
			IncorporationNumber: "BC0772006",
			LegalName:           "Cedar Ridge Logging Ltd.",
			GoodStanding:        true,
		},
		Addresses: []models.Address{
			{Name: "Mailing Address", StreetAddress: "2975 Jutland Rd", City: "Victoria", Province: "BC", Country: "CA", PostalCode: "V8T5J9"},
			{Name: "Yard", StreetAddress: "100 Mill Rd", City: "Duncan", Province: "BC", Country: "CA", PostalCode: "V9L1A1"},
		},
		Contacts: []models.Contact{
			{ContactType: "BL", FirstName: "Jamie", LastName: "Green", Email: "jamie.green@cedarridge.ca", Phone: "2505550100", AddressNames: []string{"Mailing Address"}},
			{ContactType: "DI", FirstName: "Sam", LastName: "Birch", Email: "sam.birch@cedarridge.ca", Phone: "2505550101", AddressNames: []string{"Mailing Address", "Yard"}},
			{ContactType: "TC", FirstName: "Alex", LastName: "Fir", Email: "alex.fir@cedarridge.ca", Phone: "2505550102", AddressNames: []string{"Yard"}},
		},
		District: models.District{
			Code:  "DCK",
			Name:  "Chilliwack Natural Resource District",
			Email: "FLNR.DCK@gov.bc.ca",
		},
		Matchers:    map[string]string{},
		SubmittedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Individual turns the fixture into an individual applicant.
func Individual(first, last string, birthdate time.Time) Option {
	return func(s *models.Submission) {
		s.Business = models.Business{
			BusinessType: models.BusinessUnregistered,
			ClientType:   models.ClientIndividual,
			LegalName:    first + " " + last,
			FirstName:    first,
			LastName:     last,
			Birthdate:    &birthdate,
			GoodStanding: true,
		}
	}
}

// Unregistered removes the registry record from the fixture.
func Unregistered() Option {
	return func(s *models.Submission) {
		s.Business.BusinessType = models.BusinessUnregistered
		s.Business.IncorporationNumber = ""
	}
}

// WithStatus sets the submission status.
func WithStatus(status models.Status) Option {
	return func(s *models.Submission) {
		s.Status = status
	}
}

// WithLegalName sets the business legal name.
func WithLegalName(name string) Option {
	return func(s *models.Submission) {
		s.Business.LegalName = name
	}
}

// NotInGoodStanding flags the business as not in good standing.
func NotInGoodStanding() Option {
	return func(s *models.Submission) {
		s.Business.GoodStanding = false
	}
}
