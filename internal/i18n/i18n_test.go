package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	assert.Equal(t, "en", For("").Lang)
	assert.Equal(t, "en", For("de").Lang)
	assert.Equal(t, "fr", For(" FR ").Lang)

	// callers get a copy
	s := For("en")
	s.Clear = "changed"
	assert.Equal(t, "Clear", For("en").Clear)
}

func TestLongDate(t *testing.T) {
	d := time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, "Tuesday, March 5, 2024", For("en").LongDate(d))
	assert.Equal(t, "Mardi 5 mars 2024", For("fr").LongDate(d))
}

func TestDeletedPlaceholder(t *testing.T) {
	assert.Equal(t, "Message 7 — Deleted", For("en").DeletedPlaceholder(7))
	assert.Equal(t, "Message 7 — Supprimé", For("fr").DeletedPlaceholder(7))
}
