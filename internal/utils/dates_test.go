package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	start, err := ParseDate("2024-01-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)

	end, err := ParseDate("2024-12-31", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), end)

	instant, err := ParseDate("2024-06-01T12:00:00+02:00", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), instant)

	_, err = ParseDate("01/06/2024", false)
	assert.Error(t, err)
	_, err = ParseDate("", false)
	assert.Error(t, err)
}

func TestFormatDate(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	assert.Equal(t, "2024-03-02", FormatDate(at))
}
