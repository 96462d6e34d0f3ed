package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forestclient/internal/submission/models"
	"forestclient/internal/submission/submissiontest"
)

func TestParseSubmissionID(t *testing.T) {
	t.Run("accepts positive numbers", func(t *testing.T) {
		id, err := models.ParseSubmissionID(" 42 ")
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionID(42), id)
		assert.Equal(t, "42", id.String())
	})

	for _, raw := range []string{"", "0", "-3", "abc"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, err := models.ParseSubmissionID(raw)
			assert.Error(t, err)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, models.StatusApproved.Terminal())
	assert.True(t, models.StatusRejected.Terminal())
	assert.True(t, models.StatusDeleted.Terminal())
	assert.False(t, models.StatusSubmitted.Terminal())
	assert.False(t, models.StatusInProgress.Terminal())

	s := submissiontest.New(1)
	assert.True(t, s.Processable())
	s.Status = models.StatusInProgress
	assert.False(t, s.Processable())
}

func TestValidate(t *testing.T) {
	t.Run("fixture is valid", func(t *testing.T) {
		assert.Empty(t, submissiontest.New(1).Validate())
	})

	t.Run("contact without locations is a validation error", func(t *testing.T) {
		s := submissiontest.New(1)
		s.Contacts[2].AddressNames = nil

		errs := s.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "location.contacts[2].locationNames", errs[0].Field)
		assert.Contains(t, errs[0].Message, "at least one location")
	})

	t.Run("contact referencing undeclared location is reported", func(t *testing.T) {
		s := submissiontest.New(1)
		s.Contacts[0].AddressNames = []string{"Head Office"}

		errs := s.ValidateContact(0)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, `"Head Office"`)
	})

	t.Run("location names match case-insensitively", func(t *testing.T) {
		s := submissiontest.New(1)
		s.Contacts[0].AddressNames = []string{"  mailing address "}
		assert.Empty(t, s.ValidateContact(0))
	})

	t.Run("duplicate location names are reported on the later address", func(t *testing.T) {
		s := submissiontest.New(1)
		s.Addresses[1].Name = "MAILING ADDRESS"
		assert.Empty(t, s.ValidateAddress(0))
		errs := s.ValidateAddress(1)
		require.Len(t, errs, 1)
		assert.Equal(t, "location.addresses[1].locationName", errs[0].Field)
	})

	t.Run("missing addresses are reported", func(t *testing.T) {
		s := submissiontest.New(1)
		s.Addresses = nil
		s.Contacts = nil
		errs := s.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "location.addresses", errs[0].Field)
	})

	t.Run("submission-level checks stand alone", func(t *testing.T) {
		s := submissiontest.New(1, submissiontest.WithLegalName(" "))
		s.Addresses = nil

		errs := s.ValidateSubmission()
		require.Len(t, errs, 2)
		assert.Equal(t, "businessInformation.businessName", errs[0].Field)
		assert.Equal(t, "location.addresses", errs[1].Field)
		assert.Empty(t, submissiontest.New(1).ValidateSubmission())
	})
}

func TestInformation(t *testing.T) {
	t.Run("snapshot normalises identity fields", func(t *testing.T) {
		s := submissiontest.New(7)
		s.Business.IncorporationNumber = " bc0772006 "

		info := s.Information()
		assert.Equal(t, models.SubmissionID(7), info.SubmissionID)
		assert.Equal(t, "BC0772006", info.IncorporationNumber)
		assert.Equal(t, "DCK", info.DistrictCode)

		typeCode, number, ok := info.RegistryParts()
		require.True(t, ok)
		assert.Equal(t, "BC", typeCode)
		assert.Equal(t, "0772006", number)
	})

	t.Run("enrichment returns copies", func(t *testing.T) {
		info := submissiontest.New(7).Information()
		enriched := info.WithRegistryStatus(models.RegistryFound).WithGoodStanding(false)

		assert.Equal(t, models.RegistryUnchecked, info.RegistryStatus)
		assert.True(t, info.GoodStanding)
		assert.Equal(t, models.RegistryFound, enriched.RegistryStatus)
		assert.False(t, enriched.GoodStanding)
	})

	t.Run("birthdate is copied, not shared", func(t *testing.T) {
		s := submissiontest.New(8, submissiontest.Individual("Test", "Green", time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC)))
		info := s.Information()
		*s.Business.Birthdate = time.Time{}
		require.NotNil(t, info.Birthdate)
		assert.Equal(t, 1980, info.Birthdate.Year())
	})

	t.Run("unregistered numbers do not split", func(t *testing.T) {
		info := submissiontest.New(9, submissiontest.Unregistered()).Information()
		_, _, ok := info.RegistryParts()
		assert.False(t, ok)
	})
}

func TestClientType(t *testing.T) {
	assert.Equal(t, "I", models.ClientRegisteredSoleProprietor.LegacyCode())
	assert.Equal(t, "C", models.ClientCorporation.LegacyCode())
	assert.True(t, models.ClientUnregisteredSoleProp.Individual())
	assert.False(t, models.ClientSociety.Individual())
}
