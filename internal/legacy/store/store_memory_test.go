package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"forestclient/internal/legacy/models"
	"forestclient/pkg/platform/sentinel"
)

type LegacyMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestLegacyMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(LegacyMemoryStoreSuite))
}

func (s *LegacyMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func (s *LegacyMemoryStoreSuite) TestMatching() {
	birth := time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC)
	s.store.Seed(
		models.Candidate{ClientNumber: "00000001", ClientName: "CEDAR RIDGE LOGGING LTD.", ClientTypeCode: "C", StatusCode: models.StatusActive, RegistryTypeCode: "BC", RegistrationNumber: "0772006"},
		models.Candidate{ClientNumber: "00000002", ClientName: "OLD MILL INC.", ClientTypeCode: "C", StatusCode: models.StatusDeactivated, RegistryTypeCode: "BC", RegistrationNumber: "0772006"},
		models.Candidate{ClientNumber: "00000003", ClientName: "GREEN", LegalFirstName: "TEST", ClientTypeCode: "I", StatusCode: models.StatusActive, Birthdate: &birth},
	)

	s.Run("incorporation lookup ignores inactive clients", func() {
		got, err := s.store.MatchByIncorporation(s.ctx, "BC0772006")
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(models.ClientNumber("00000001"), got[0].ClientNumber)
	})

	s.Run("individual lookup needs names and birthdate", func() {
		got, err := s.store.MatchIndividual(s.ctx, "Test", "Green", birth)
		s.Require().NoError(err)
		s.Len(got, 1)

		got, err = s.store.MatchIndividual(s.ctx, "Test", "Green", birth.AddDate(0, 0, 1))
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("name lookup returns active clients in number order", func() {
		got, err := s.store.MatchByName(s.ctx, "anything")
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(models.ClientNumber("00000001"), got[0].ClientNumber)
		s.Equal(models.ClientNumber("00000003"), got[1].ClientNumber)
	})
}

func (s *LegacyMemoryStoreSuite) TestInsertClientAllocatesSequentialNumbers() {
	first, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "A", ClientTypeCode: "C"})
	s.Require().NoError(err)
	second, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "B", ClientTypeCode: "C"})
	s.Require().NoError(err)

	s.Equal(models.ClientNumber("00100000"), first)
	s.Equal(models.ClientNumber("00100001"), second)
}

func (s *LegacyMemoryStoreSuite) TestInsertRequiresParentRecords() {
	s.Run("location without client", func() {
		_, err := s.store.InsertLocation(s.ctx, "99999999", models.Location{LocationCode: "00"})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("contact linked to unknown location", func() {
		number, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "A", ClientTypeCode: "C"})
		s.Require().NoError(err)

		_, err = s.store.InsertContact(s.ctx, number, models.Contact{Name: "Jamie Green", LocationCodes: []string{"00"}})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("duplicate location code conflicts", func() {
		number, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "B", ClientTypeCode: "C"})
		s.Require().NoError(err)
		_, err = s.store.InsertLocation(s.ctx, number, models.Location{LocationCode: "00"})
		s.Require().NoError(err)

		_, err = s.store.InsertLocation(s.ctx, number, models.Location{LocationCode: "00"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *LegacyMemoryStoreSuite) TestFaultInjection() {
	boom := errors.New("disk full")
	s.store.InjectFault(FailOn(OpInsertLocation, 1, boom))

	number, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "A", ClientTypeCode: "C"})
	s.Require().NoError(err)
	_, err = s.store.InsertLocation(s.ctx, number, models.Location{LocationCode: "00"})
	s.Require().NoError(err)
	_, err = s.store.InsertLocation(s.ctx, number, models.Location{LocationCode: "01"})
	s.ErrorIs(err, boom)

	s.Equal([]Write{
		{Op: OpInsertClient, ClientNumber: number, Key: string(number)},
		{Op: OpInsertLocation, ClientNumber: number, Key: "00"},
	}, s.store.Writes())
	s.Len(s.store.Locations(number), 1)
}

func (s *LegacyMemoryStoreSuite) TestContactLinks() {
	number, err := s.store.InsertClient(s.ctx, models.ForestClient{ClientName: "A", ClientTypeCode: "C"})
	s.Require().NoError(err)
	for _, code := range []string{"00", "01"} {
		_, err = s.store.InsertLocation(s.ctx, number, models.Location{LocationCode: code})
		s.Require().NoError(err)
	}

	id, err := s.store.InsertContact(s.ctx, number, models.Contact{Name: "Sam Birch", LocationCodes: []string{"00", "01"}})
	s.Require().NoError(err)
	s.Equal([]string{"00", "01"}, s.store.ContactLocations(id))
}
