package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipients(t *testing.T) {
	t.Run("drops blanks and malformed addresses", func(t *testing.T) {
		got := Recipients(" jamie.green@cedarridge.ca ", "", "not-an-email", "FLNR.DCK@gov.bc.ca")
		assert.Equal(t, []string{"jamie.green@cedarridge.ca", "FLNR.DCK@gov.bc.ca"}, got)
	})

	t.Run("de-duplicates case-insensitively", func(t *testing.T) {
		got := Recipients("FLNR.DCK@gov.bc.ca", "flnr.dck@gov.bc.ca")
		assert.Equal(t, []string{"FLNR.DCK@gov.bc.ca"}, got)
	})

	t.Run("no input", func(t *testing.T) {
		assert.Empty(t, Recipients())
	})
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("sam.birch@cedarridge.ca"))
	assert.False(t, Valid("Sam <sam.birch@cedarridge.ca>"))
	assert.False(t, Valid("sam.birch"))
}
