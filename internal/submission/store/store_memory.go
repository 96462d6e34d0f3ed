package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"forestclient/internal/submission/models"
	"forestclient/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions in memory. Reads and writes deep-copy so
// callers never share mutable state with the store.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[models.SubmissionID]*models.Submission
	history     map[models.SubmissionID][]models.Status
	now         func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		submissions: make(map[models.SubmissionID]*models.Submission),
		history:     make(map[models.SubmissionID][]models.Status),
		now:         time.Now,
	}
}

// Put inserts or replaces a submission.
func (s *InMemoryStore) Put(sub *models.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = clone(sub)
}

func (s *InMemoryStore) LoadDetail(_ context.Context, id models.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %d: %w", id, sentinel.ErrNotFound)
	}
	return clone(sub), nil
}

func (s *InMemoryStore) FindPending(_ context.Context, olderThan time.Duration) ([]models.DistrictSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-olderThan)

	var out []models.DistrictSummary
	for _, sub := range s.submissions {
		if sub.Status != models.StatusInProgress || !sub.SubmittedAt.Before(cutoff) {
			continue
		}
		out = append(out, models.DistrictSummary{
			SubmissionID: sub.ID,
			BusinessName: sub.Business.LegalName,
			SubmittedAt:  sub.SubmittedAt,
			District:     sub.District,
		})
	}
	slices.SortFunc(out, func(a, b models.DistrictSummary) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id models.SubmissionID, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return fmt.Errorf("submission %d: %w", id, sentinel.ErrNotFound)
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	s.history[id] = append(s.history[id], status)
	return nil
}

func (s *InMemoryStore) SaveMatchers(_ context.Context, id models.SubmissionID, matchers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return fmt.Errorf("submission %d: %w", id, sentinel.ErrNotFound)
	}
	if sub.Matchers == nil {
		sub.Matchers = make(map[string]string, len(matchers))
	}
	maps.Copy(sub.Matchers, matchers)
	return nil
}

// StatusHistory returns every status written for id, oldest first.
func (s *InMemoryStore) StatusHistory(id models.SubmissionID) []models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[id])
}

func clone(sub *models.Submission) *models.Submission {
	c := *sub
	c.Addresses = slices.Clone(sub.Addresses)
	c.Contacts = make([]models.Contact, len(sub.Contacts))
	for i, contact := range sub.Contacts {
		contact.AddressNames = slices.Clone(contact.AddressNames)
		c.Contacts[i] = contact
	}
	c.Matchers = maps.Clone(sub.Matchers)
	if sub.Business.Birthdate != nil {
		b := *sub.Business.Birthdate
		c.Business.Birthdate = &b
	}
	return &c
}
