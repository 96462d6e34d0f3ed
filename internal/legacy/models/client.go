// Package models holds the legacy Forest Client records written on approval.
package models

import (
	"fmt"
	"time"
)

// ClientNumber is the 8-digit legacy client identifier.
type ClientNumber string

// FormatClientNumber zero-pads a sequence value to the legacy 8-digit form.
func FormatClientNumber(seq int64) ClientNumber {
	return ClientNumber(fmt.Sprintf("%08d", seq))
}

// LocationCode formats the n-th location code ("00", "01", ...).
func LocationCode(n int) string {
	return fmt.Sprintf("%02d", n)
}

const (
	StatusActive      = "ACT"
	StatusDeactivated = "DAC"
)

// Candidate is an existing legacy client returned by a match lookup.
type Candidate struct {
	ClientNumber       ClientNumber
	ClientName         string
	LegalFirstName     string
	LegalMiddleName    string
	ClientTypeCode     string
	StatusCode         string
	RegistryTypeCode   string
	RegistrationNumber string
	Birthdate          *time.Time
}

// Active reports whether the candidate is an active client.
func (c Candidate) Active() bool {
	return c.StatusCode == StatusActive
}

// IncorporationNumber concatenates registry type code and registration number.
func (c Candidate) IncorporationNumber() string {
	return c.RegistryTypeCode + c.RegistrationNumber
}

// ForestClient is the client row inserted for an approved submission.
type ForestClient struct {
	ClientName         string
	LegalFirstName     string
	LegalMiddleName    string
	ClientTypeCode     string
	Birthdate          *time.Time
	RegistryTypeCode   string
	RegistrationNumber string
	Acronym            string
	Comment            string
	CreatedBy          string
}

// Location is a client location row.
type Location struct {
	LocationCode  string
	Name          string
	AddressOne    string
	AddressTwo    string
	City          string
	Province      string
	PostalCode    string
	Country       string
	BusinessPhone string
	Email         string
	CreatedBy     string
}

// Contact is a client contact row plus the location codes it is linked to.
type Contact struct {
	ContactCode   string
	Name          string
	Phone         string
	Email         string
	CreatedBy     string
	LocationCodes []string
}

// ContactID identifies an inserted contact row.
type ContactID int64
