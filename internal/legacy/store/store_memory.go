package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"forestclient/internal/legacy/models"
	"forestclient/pkg/platform/sentinel"
)

// Op names the write operations recorded by InMemoryStore.
type Op string

const (
	OpInsertClient   Op = "client"
	OpInsertLocation Op = "location"
	OpInsertContact  Op = "contact"
	OpLinkContact    Op = "contact_location"
)

// Write is one successful write recorded in order.
type Write struct {
	Op           Op
	ClientNumber models.ClientNumber
	Key          string
}

// FaultFunc decides whether the n-th (zero based) write of op fails.
type FaultFunc func(op Op, n int) error

// FailOn returns a FaultFunc failing only the n-th write of op.
func FailOn(op Op, n int, err error) FaultFunc {
	return func(got Op, i int) error {
		if got == op && i == n {
			return err
		}
		return nil
	}
}

type contactLink struct {
	contactID    models.ContactID
	clientNumber models.ClientNumber
	locationCode string
}

// InMemoryStore is a legacy client store for tests and local runs. Matching is
// deliberately simple: name lookups return every active client and leave
// similarity scoring to the caller, as the trigram pre-filter would.
type InMemoryStore struct {
	mu        sync.Mutex
	clients   map[models.ClientNumber]models.Candidate
	locations map[models.ClientNumber][]models.Location
	contacts  map[models.ContactID]models.Contact
	links     []contactLink
	writes    []Write
	counts    map[Op]int
	nextSeq   int64
	nextID    int64
	fault     FaultFunc
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clients:   make(map[models.ClientNumber]models.Candidate),
		locations: make(map[models.ClientNumber][]models.Location),
		contacts:  make(map[models.ContactID]models.Contact),
		counts:    make(map[Op]int),
		nextSeq:   100000,
		nextID:    1,
	}
}

// Seed adds existing clients visible to the match lookups.
func (s *InMemoryStore) Seed(candidates ...models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candidates {
		s.clients[c.ClientNumber] = c
	}
}

// InjectFault installs a fault hook for subsequent writes. Nil clears it.
func (s *InMemoryStore) InjectFault(fault FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault
}

// Writes returns every successful write, oldest first.
func (s *InMemoryStore) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes)
}

// Locations returns the locations written for a client.
func (s *InMemoryStore) Locations(clientNumber models.ClientNumber) []models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.locations[clientNumber])
}

// ContactLocations returns the location codes linked to a contact.
func (s *InMemoryStore) ContactLocations(id models.ContactID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []string
	for _, l := range s.links {
		if l.contactID == id {
			codes = append(codes, l.locationCode)
		}
	}
	return codes
}

func (s *InMemoryStore) MatchByName(_ context.Context, _ string) ([]models.Candidate, error) {
	return s.filter(func(models.Candidate) bool { return true }), nil
}

func (s *InMemoryStore) MatchByIncorporation(_ context.Context, incorporationNumber string) ([]models.Candidate, error) {
	return s.filter(func(c models.Candidate) bool {
		return c.IncorporationNumber() == incorporationNumber
	}), nil
}

func (s *InMemoryStore) MatchIndividual(_ context.Context, firstName, lastName string, birthdate time.Time) ([]models.Candidate, error) {
	return s.filter(func(c models.Candidate) bool {
		return c.ClientTypeCode == "I" &&
			strings.EqualFold(c.LegalFirstName, firstName) &&
			strings.EqualFold(c.ClientName, lastName) &&
			c.Birthdate != nil && c.Birthdate.Equal(birthdate)
	}), nil
}

func (s *InMemoryStore) filter(keep func(models.Candidate) bool) []models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Candidate
	for _, c := range s.clients {
		if c.Active() && keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Candidate) int {
		return strings.Compare(string(a.ClientNumber), string(b.ClientNumber))
	})
	return out
}

func (s *InMemoryStore) InsertClient(_ context.Context, client models.ForestClient) (models.ClientNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpInsertClient); err != nil {
		return "", fmt.Errorf("insert client: %w", err)
	}
	number := models.FormatClientNumber(s.nextSeq)
	s.nextSeq++
	s.clients[number] = models.Candidate{
		ClientNumber:       number,
		ClientName:         client.ClientName,
		LegalFirstName:     client.LegalFirstName,
		LegalMiddleName:    client.LegalMiddleName,
		ClientTypeCode:     client.ClientTypeCode,
		StatusCode:         models.StatusActive,
		RegistryTypeCode:   client.RegistryTypeCode,
		RegistrationNumber: client.RegistrationNumber,
		Birthdate:          client.Birthdate,
	}
	s.record(OpInsertClient, number, string(number))
	return number, nil
}

func (s *InMemoryStore) InsertLocation(_ context.Context, clientNumber models.ClientNumber, loc models.Location) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientNumber]; !ok {
		return "", fmt.Errorf("insert location %s/%s: %w", clientNumber, loc.LocationCode, sentinel.ErrInvalidState)
	}
	if err := s.check(OpInsertLocation); err != nil {
		return "", fmt.Errorf("insert location %s/%s: %w", clientNumber, loc.LocationCode, err)
	}
	for _, existing := range s.locations[clientNumber] {
		if existing.LocationCode == loc.LocationCode {
			return "", fmt.Errorf("insert location %s/%s: %w", clientNumber, loc.LocationCode, sentinel.ErrConflict)
		}
	}
	s.locations[clientNumber] = append(s.locations[clientNumber], loc)
	s.record(OpInsertLocation, clientNumber, loc.LocationCode)
	return loc.LocationCode, nil
}

func (s *InMemoryStore) InsertContact(_ context.Context, clientNumber models.ClientNumber, contact models.Contact) (models.ContactID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientNumber]; !ok {
		return 0, fmt.Errorf("insert contact for %s: %w", clientNumber, sentinel.ErrInvalidState)
	}
	if err := s.check(OpInsertContact); err != nil {
		return 0, fmt.Errorf("insert contact for %s: %w", clientNumber, err)
	}
	id := models.ContactID(s.nextID)
	s.nextID++
	stored := contact
	stored.LocationCodes = slices.Clone(contact.LocationCodes)
	s.contacts[id] = stored
	s.record(OpInsertContact, clientNumber, contact.Name)

	for _, code := range contact.LocationCodes {
		if !s.hasLocation(clientNumber, code) {
			return id, fmt.Errorf("link contact %d to %s/%s: %w", id, clientNumber, code, sentinel.ErrInvalidState)
		}
		if err := s.check(OpLinkContact); err != nil {
			return id, fmt.Errorf("link contact %d to %s/%s: %w", id, clientNumber, code, err)
		}
		s.links = append(s.links, contactLink{contactID: id, clientNumber: clientNumber, locationCode: code})
		s.record(OpLinkContact, clientNumber, code)
	}
	return id, nil
}

func (s *InMemoryStore) hasLocation(clientNumber models.ClientNumber, code string) bool {
	return slices.ContainsFunc(s.locations[clientNumber], func(l models.Location) bool {
		return l.LocationCode == code
	})
}

// check consults the fault hook for the next write of op. Counts advance
// whether or not the write fails so FailOn targets a stable attempt index.
func (s *InMemoryStore) check(op Op) error {
	n := s.counts[op]
	s.counts[op] = n + 1
	if s.fault == nil {
		return nil
	}
	return s.fault(op, n)
}

func (s *InMemoryStore) record(op Op, clientNumber models.ClientNumber, key string) {
	s.writes = append(s.writes, Write{Op: op, ClientNumber: clientNumber, Key: key})
}
