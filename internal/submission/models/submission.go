package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SubmissionID identifies a client-registration submission.
type SubmissionID int64

func (id SubmissionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseSubmissionID parses a positive decimal submission id.
func ParseSubmissionID(raw string) (SubmissionID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid submission id %q", raw)
	}
	return SubmissionID(n), nil
}

// Status is the lifecycle position of a submission.
type Status string

const (
	StatusInProgress Status = "P"
	StatusSubmitted  Status = "S"
	StatusApproved   Status = "A"
	StatusRejected   Status = "R"
	StatusDeleted    Status = "D"
)

// Terminal reports whether no further automatic processing can change the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusDeleted
}

// SubmissionType distinguishes first-time submissions from resubmissions.
type SubmissionType string

const (
	TypePendingProcessing SubmissionType = "SPP"
	TypeResubmission      SubmissionType = "RNC"
)

// BusinessType says whether the business is registered with BC Registries.
type BusinessType string

const (
	BusinessRegistered   BusinessType = "R"
	BusinessUnregistered BusinessType = "U"
)

// ClientType is the legacy client type code declared by the applicant.
type ClientType string

const (
	ClientCorporation              ClientType = "C"
	ClientIndividual               ClientType = "I"
	ClientRegisteredSoleProprietor ClientType = "RSP"
	ClientUnregisteredSoleProp     ClientType = "USP"
	ClientSociety                  ClientType = "S"
	ClientAssociation              ClientType = "A"
	ClientPartnership              ClientType = "P"
)

// Individual reports whether the client is a person rather than an organisation.
func (t ClientType) Individual() bool {
	return t == ClientIndividual || t == ClientRegisteredSoleProprietor || t == ClientUnregisteredSoleProp
}

// LegacyCode maps the declared type to the legacy store's single-letter code.
// Sole proprietorships are stored as individuals.
func (t ClientType) LegacyCode() string {
	if t.Individual() {
		return string(ClientIndividual)
	}
	return string(t)
}

// Business is the business section of a submission.
type Business struct {
	BusinessType        BusinessType
	ClientType          ClientType
	IncorporationNumber string
	LegalName           string
	DoingBusinessAs     string
	GoodStanding        bool
	Birthdate           *time.Time
	FirstName           string
	LastName            string
}

// Registered reports whether the business declares a registry record.
func (b Business) Registered() bool {
	return b.BusinessType == BusinessRegistered && strings.TrimSpace(b.IncorporationNumber) != ""
}

// Address is a named location declared by the applicant.
type Address struct {
	Name                 string
	StreetAddress        string
	ComplementaryAddress string
	City                 string
	Province             string
	Country              string
	PostalCode           string
	BusinessPhone        string
	Email                string
}

// Contact is a person declared by the applicant, associated to addresses by name.
type Contact struct {
	ContactType  string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	UserID       string
	AddressNames []string
}

// FullName returns "First Last".
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// District is the forest district responsible for a submission.
type District struct {
	Code  string
	Name  string
	Email string
}

// Submission is a pending client-registration request and its details.
type Submission struct {
	ID          SubmissionID
	Status      Status
	Type        SubmissionType
	Business    Business
	Addresses   []Address
	Contacts    []Contact
	District    District
	Matchers    map[string]string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Processable reports whether a trigger for this submission should start the pipeline.
// Only freshly submitted work is processed; in-progress submissions are awaiting
// review or operator action and terminal ones are done.
func (s *Submission) Processable() bool {
	return s.Status == StatusSubmitted
}

// PrimaryContact returns the first declared contact, if any.
func (s *Submission) PrimaryContact() (Contact, bool) {
	if len(s.Contacts) == 0 {
		return Contact{}, false
	}
	return s.Contacts[0], true
}

// ApplicantName is the name used in notifications: the primary contact, or the business.
func (s *Submission) ApplicantName() string {
	if c, ok := s.PrimaryContact(); ok && c.FullName() != "" {
		return c.FullName()
	}
	return s.Business.LegalName
}

// AddressIndex returns the position of the named address, or -1.
func (s *Submission) AddressIndex(name string) int {
	for i, a := range s.Addresses {
		if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// Information derives the immutable business snapshot carried by the pipeline.
func (s *Submission) Information() SubmissionInformation {
	info := SubmissionInformation{
		SubmissionID:        s.ID,
		LegalName:           strings.TrimSpace(s.Business.LegalName),
		IncorporationNumber: strings.ToUpper(strings.TrimSpace(s.Business.IncorporationNumber)),
		GoodStanding:        s.Business.GoodStanding,
		ClientType:          s.Business.ClientType,
		BusinessType:        s.Business.BusinessType,
		FirstName:           strings.TrimSpace(s.Business.FirstName),
		LastName:            strings.TrimSpace(s.Business.LastName),
		DistrictCode:        s.District.Code,
	}
	if s.Business.Birthdate != nil {
		b := *s.Business.Birthdate
		info.Birthdate = &b
	}
	return info
}

// DistrictSummary is the reminder view of a submission still waiting on staff.
type DistrictSummary struct {
	SubmissionID SubmissionID
	BusinessName string
	SubmittedAt  time.Time
	District     District
}
