package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/encounter/internal/clock"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)
	assert.Equal(t, start, c.Now())
	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestReal_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, clock.New().Now().Location())
}
