package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/gtfsdb/errs"
)

func TestParseInt(t *testing.T) {
	r := Parse(TypeInt, "42")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.Equal(t, 42, r.Value.Int)

	r = Parse(TypeInt, "not-a-number")
	assert.Equal(t, errs.KindInvalidFieldFormat, r.Err)
}

func TestParseOptionalInt(t *testing.T) {
	r := Parse(TypeOptionalInt, "")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.False(t, r.Value.OptInt.Valid)

	r = Parse(TypeOptionalInt, "7")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.True(t, r.Value.OptInt.Valid)
	assert.Equal(t, 7, r.Value.OptInt.Value)
}

func TestParseLatLon(t *testing.T) {
	r := Parse(TypeLatitude, "91")
	assert.Equal(t, errs.KindOutOfRange, r.Err)

	r = Parse(TypeLatitude, "45.5")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.InDelta(t, 45.5, r.Value.Float, 0.0001)
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		raw     string
		wantErr errs.Kind
	}{
		{"FFFFFF", ""},
		{"ffffff", ""},
		{"", ""},
		{"GGGGGG", errs.KindInvalidColor},
		{"FFF", errs.KindInvalidColor},
	}
	for _, c := range cases {
		r := Parse(TypeColor, c.raw)
		assert.Equal(t, c.wantErr, r.Err, "raw=%q", c.raw)
	}
}

func TestParseDate(t *testing.T) {
	r := Parse(TypeDate, "20240131")
	require.Equal(t, errs.Kind(""), r.Err)

	r = Parse(TypeDate, "2024-01-31")
	assert.Equal(t, errs.KindInvalidDateFormat, r.Err)

	r = Parse(TypeDate, "20240231") // Feb 31 doesn't exist
	assert.Equal(t, errs.KindInvalidDateFormat, r.Err)
}

func TestParseTimeOfDay(t *testing.T) {
	r := Parse(TypeTime, "8:3:0")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.Equal(t, "08:03:00", r.Value.Str)

	// GTFS explicitly allows times past 24:00:00 for post-midnight
	// service.
	r = Parse(TypeTime, "25:30:00")
	require.Equal(t, errs.Kind(""), r.Err)
	assert.Equal(t, "25:30:00", r.Value.Str)

	r = Parse(TypeTime, "08:99:00")
	assert.Equal(t, errs.KindInvalidTimeFormat, r.Err)
}

func TestParseURL(t *testing.T) {
	r := Parse(TypeURL, "https://example.com")
	require.Equal(t, errs.Kind(""), r.Err)

	r = Parse(TypeURL, "not a url")
	assert.Equal(t, errs.KindInvalidURL, r.Err)
}

func TestParseEmail(t *testing.T) {
	r := Parse(TypeEmail, "rider@example.com")
	require.Equal(t, errs.Kind(""), r.Err)

	r = Parse(TypeEmail, "not-an-email")
	assert.Equal(t, errs.KindInvalidEmail, r.Err)
}

func TestParseTimezone(t *testing.T) {
	r := Parse(TypeTimezone, "America/New_York")
	require.Equal(t, errs.Kind(""), r.Err)

	r = Parse(TypeTimezone, "Not/A_Zone")
	assert.Equal(t, errs.KindInvalidTimezone, r.Err)
}
