package models

import (
	"fmt"
	"strings"

	"forestclient/pkg/email"
)

// ValidationError is a structured problem with a submission field.
type ValidationError struct {
	Field   string `json:"fieldId"`
	Message string `json:"errorMsg"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateAddress checks the address at index i.
func (s *Submission) ValidateAddress(i int) []ValidationError {
	a := s.Addresses[i]
	path := fmt.Sprintf("location.addresses[%d]", i)
	var errs []ValidationError

	name := strings.TrimSpace(a.Name)
	if name == "" {
		errs = append(errs, ValidationError{Field: path + ".locationName", Message: "location name is required"})
	} else {
		for j := 0; j < i; j++ {
			if strings.EqualFold(strings.TrimSpace(s.Addresses[j].Name), name) {
				errs = append(errs, ValidationError{
					Field:   path + ".locationName",
					Message: fmt.Sprintf("location name %q is declared more than once", name),
				})
				break
			}
		}
	}
	if strings.TrimSpace(a.StreetAddress) == "" {
		errs = append(errs, ValidationError{Field: path + ".streetAddress", Message: "street address is required"})
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, ValidationError{Field: path + ".city", Message: "city is required"})
	}
	if strings.TrimSpace(a.Country) == "" {
		errs = append(errs, ValidationError{Field: path + ".country", Message: "country is required"})
	}
	if a.Email != "" {
		if !email.Valid(a.Email) {
			errs = append(errs, ValidationError{Field: path + ".emailAddress", Message: "email address is invalid"})
		}
	}
	return errs
}

// ValidateContact checks the contact at index i, including that every
// location it references is declared on the submission.
func (s *Submission) ValidateContact(i int) []ValidationError {
	c := s.Contacts[i]
	path := fmt.Sprintf("location.contacts[%d]", i)
	var errs []ValidationError

	if strings.TrimSpace(c.FirstName) == "" {
		errs = append(errs, ValidationError{Field: path + ".firstName", Message: "first name is required"})
	}
	if strings.TrimSpace(c.LastName) == "" {
		errs = append(errs, ValidationError{Field: path + ".lastName", Message: "last name is required"})
	}
	if !email.Valid(c.Email) {
		errs = append(errs, ValidationError{Field: path + ".email", Message: "email address is invalid"})
	}

	referenced := 0
	for _, name := range c.AddressNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		referenced++
		if s.AddressIndex(name) < 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".locationNames",
				Message: fmt.Sprintf("location %q is not declared on this submission", name),
			})
		}
	}
	if referenced == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".locationNames",
			Message: "contact must be associated with at least one location",
		})
	}
	return errs
}

// ValidateSubmission checks the rules that span the whole submission rather
// than a single address or contact.
func (s *Submission) ValidateSubmission() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(s.Business.LegalName) == "" && !s.Business.ClientType.Individual() {
		errs = append(errs, ValidationError{Field: "businessInformation.businessName", Message: "business name is required"})
	}
	if len(s.Addresses) == 0 {
		errs = append(errs, ValidationError{Field: "location.addresses", Message: "at least one location is required"})
	}
	return errs
}

// Validate runs every check.
func (s *Submission) Validate() []ValidationError {
	errs := s.ValidateSubmission()
	for i := range s.Addresses {
		errs = append(errs, s.ValidateAddress(i)...)
	}
	for i := range s.Contacts {
		errs = append(errs, s.ValidateContact(i)...)
	}
	return errs
}
