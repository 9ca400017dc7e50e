package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, s := range []string{"", "never"} {
		got, err := ParseExpiry(s, now)
		require.NoError(t, err)
		assert.Nil(t, got)
	}

	cases := map[string]time.Time{
		"36h":              now.Add(36 * time.Hour),
		"90m":              now.Add(90 * time.Minute),
		"30d":              now.AddDate(0, 0, 30),
		"2w":               now.AddDate(0, 0, 14),
		"2027-01-31":       time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
		"2027-01-31 18:00": time.Date(2027, 1, 31, 18, 0, 0, 0, time.UTC),
		"01/31/2027":       time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseExpiry(in, now)
		require.NoError(t, err, in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), "%s: got %s", in, got)
	}

	for _, bad := range []string{"-1h", "0d", "2026-01-01", "tomorrow", "5y"} {
		_, err := ParseExpiry(bad, now)
		assert.Error(t, err, bad)
	}
}
