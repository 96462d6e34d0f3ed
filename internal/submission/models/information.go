package models

import (
	"regexp"
	"strings"
	"time"
)

// RegistryStatus is what the registry of record said about a registered business.
type RegistryStatus string

const (
	RegistryUnchecked RegistryStatus = ""
	RegistryFound     RegistryStatus = "found"
	RegistryNotFound  RegistryStatus = "not_found"
	RegistryUnknown   RegistryStatus = "unknown"
)

// SubmissionInformation is the business snapshot passed along the pipeline.
// It is a value: enrichment returns modified copies and never mutates in place.
type SubmissionInformation struct {
	SubmissionID        SubmissionID
	LegalName           string
	IncorporationNumber string
	GoodStanding        bool
	ClientType          ClientType
	BusinessType        BusinessType
	FirstName           string
	LastName            string
	Birthdate           *time.Time
	DistrictCode        string
	RegistryStatus      RegistryStatus
}

// WithRegistryStatus returns a copy carrying the registry lookup outcome.
func (i SubmissionInformation) WithRegistryStatus(status RegistryStatus) SubmissionInformation {
	i.RegistryStatus = status
	return i
}

// WithProprietor returns a copy carrying the proprietor's name as reported by the registry.
func (i SubmissionInformation) WithProprietor(firstName, lastName string) SubmissionInformation {
	if strings.TrimSpace(firstName) != "" {
		i.FirstName = strings.TrimSpace(firstName)
	}
	if strings.TrimSpace(lastName) != "" {
		i.LastName = strings.TrimSpace(lastName)
	}
	return i
}

// WithGoodStanding returns a copy with the registry-reported standing.
func (i SubmissionInformation) WithGoodStanding(goodStanding bool) SubmissionInformation {
	i.GoodStanding = goodStanding
	return i
}

var incorporationPattern = regexp.MustCompile(`^([A-Z]{1,3})(\d+)$`)

// RegistryParts splits the incorporation number into registry type code and
// registration number ("BC0123456" -> "BC", "0123456").
func (i SubmissionInformation) RegistryParts() (typeCode, number string, ok bool) {
	m := incorporationPattern.FindStringSubmatch(i.IncorporationNumber)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
