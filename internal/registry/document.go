package registry

import "strings"

// Document is the business summary returned by the BC Registry.
type Document struct {
	Business Business `json:"business"`
	Parties  []Party  `json:"parties"`
}

// Business is the registry's view of the entity.
type Business struct {
	Identifier   string `json:"identifier"`
	LegalName    string `json:"legalName"`
	LegalType    string `json:"legalType"`
	GoodStanding bool   `json:"goodStanding"`
}

// Party is a person or organization holding roles in the business.
type Party struct {
	Officer Officer `json:"officer"`
	Roles   []Role  `json:"roles"`
}

// Officer identifies a party.
type Officer struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	MiddleInitial    string `json:"middleInitial,omitempty"`
	OrganizationName string `json:"organizationName,omitempty"`
	PartyType        string `json:"partyType"`
}

// Role is a role held by a party.
type Role struct {
	RoleType string `json:"roleType"`
}

const (
	PartyTypePerson = "person"
	RoleProprietor  = "Proprietor"
)

// Proprietor returns the first person holding the proprietor role.
func (d *Document) Proprietor() (Officer, bool) {
	for _, p := range d.Parties {
		if !strings.EqualFold(p.Officer.PartyType, PartyTypePerson) {
			continue
		}
		for _, r := range p.Roles {
			if strings.EqualFold(r.RoleType, RoleProprietor) {
				return p.Officer, true
			}
		}
	}
	return Officer{}, false
}
