package prices

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 4, 30, 0, 0, time.UTC)

func extractJSON(t *testing.T, body string) (Snapshot, error) {
	t.Helper()
	v, err := DecodeBytes([]byte(body))
	require.NoError(t, err)
	return Extract(v, fixedNow)
}

func TestExtractUsesLastArrayElement(t *testing.T) {
	snap, err := extractJSON(t, `[{"petrol":90,"diesel":80},{"petrol":95,"diesel":85}]`)
	require.NoError(t, err)
	assert.Equal(t, 95.0, snap.Petrol)
	assert.Equal(t, 85.0, snap.Diesel)
	assert.Equal(t, "2026-10-19T04:30:00.000Z", snap.UpdatedAt)
}

func TestExtractNestedAliasesCaseInsensitive(t *testing.T) {
	body := `{
		"data": {
			"city": "Palakkad",
			"fuel": {"Petrol_Price": "106.42", "DIESEL": 95.38}
		},
		"lastUpdated": "2026-10-18T06:00:00Z"
	}`
	snap, err := extractJSON(t, body)
	require.NoError(t, err)
	assert.Equal(t, 106.42, snap.Petrol)
	assert.Equal(t, 95.38, snap.Diesel)
	assert.Equal(t, "2026-10-18T06:00:00Z", snap.UpdatedAt)
}

func TestExtractCamelCaseAliases(t *testing.T) {
	snap, err := extractJSON(t, `{"petrolPrice":104.1,"dieselPrice":"93.9"}`)
	require.NoError(t, err)
	assert.Equal(t, 104.1, snap.Petrol)
	assert.Equal(t, 93.9, snap.Diesel)
}

func TestExtractFirstFoundWinsPerField(t *testing.T) {
	// "a" is visited before the top-level petrol, so its deeper value wins,
	// and the later nested diesel does not override the first one.
	body := `{"a":{"petrol":101.5},"petrol":202.5,"diesel":91.2,"b":{"diesel":77.7}}`
	snap, err := extractJSON(t, body)
	require.NoError(t, err)
	assert.Equal(t, 101.5, snap.Petrol)
	assert.Equal(t, 91.2, snap.Diesel)
}

func TestExtractSkipsNonNumericValues(t *testing.T) {
	snap, err := extractJSON(t, `{"petrol":"n/a","p":"104.20","diesel":null,"d":"93.10 INR"}`)
	require.NoError(t, err)
	assert.Equal(t, 104.2, snap.Petrol)
	// "93.10 INR" starts with a digit but is not a number, so the structural
	// scan leaves diesel unset and the fallback supplies it.
	assert.Equal(t, 93.1, snap.Diesel)
}

func TestExtractTimestampFirstMatchWins(t *testing.T) {
	body := `{"date":"2026-10-17","petrol":100.1,"diesel":90.2,"updated_at":"2026-10-18"}`
	snap, err := extractJSON(t, body)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", snap.UpdatedAt)
}

func TestExtractFallbackFillsOnlyUnsetField(t *testing.T) {
	snap, err := extractJSON(t, `{"petrol":102,"summary":"rates 91.23 / 88.10"}`)
	require.NoError(t, err)
	assert.Equal(t, 102.0, snap.Petrol)
	assert.Equal(t, 88.10, snap.Diesel)
}

func TestExtractFallbackScansWholeResponse(t *testing.T) {
	// The candidate is the last element but the fallback serializes everything.
	snap, err := extractJSON(t, `[{"note":"106.55 and 95.40"},{"note":"none"}]`)
	require.NoError(t, err)
	assert.Equal(t, 106.55, snap.Petrol)
	assert.Equal(t, 95.4, snap.Diesel)
}

func TestExtractFallbackSecondPattern(t *testing.T) {
	snap, err := extractJSON(t, `{"info":"petrol 101.5 diesel 95.4"}`)
	require.NoError(t, err)
	assert.Equal(t, 101.5, snap.Petrol)
	assert.Equal(t, 95.4, snap.Diesel)
}

func TestExtractFallbackNeedsTwoMatchesFromFirstPattern(t *testing.T) {
	// The two-decimal pattern finds one number, so the looser pattern is not
	// consulted and extraction fails.
	_, err := extractJSON(t, `{"info":"petrol 101.25 diesel 95.4"}`)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
}

func TestExtractFailsWithoutPrices(t *testing.T) {
	_, err := extractJSON(t, `{"status":"ok","city":"Palakkad"}`)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Contains(t, extErr.Dump, `"city": "Palakkad"`)
	assert.Equal(t, ExitExtraction, ExitCode(err))
}

func TestExtractDumpIsTruncated(t *testing.T) {
	long := strings.Repeat("x", 5000)
	_, err := extractJSON(t, `{"blob":"`+long+`"}`)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Len(t, []rune(extErr.Dump), 2000)
	assert.True(t, strings.HasPrefix(extErr.Dump, "{\n  \"blob\": \"xxx"))
}

func TestExtractEmptyArray(t *testing.T) {
	_, err := extractJSON(t, `[]`)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
}

func TestExtractStopsAtMaxDepth(t *testing.T) {
	body := strings.Repeat(`{"n":`, maxScanDepth+5) + `{"petrol":1.5,"diesel":2.5}` + strings.Repeat(`}`, maxScanDepth+5)
	_, err := extractJSON(t, body)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
}

func TestExtractVisitsIndexKeysFirst(t *testing.T) {
	// Records keyed by id are enumerated before named keys, whatever their
	// position in the document.
	body := `{"petrol":101.5,"diesel":91.2,"7":{"petrol":99.9,"diesel":88.8}}`
	snap, err := extractJSON(t, body)
	require.NoError(t, err)
	assert.Equal(t, 99.9, snap.Petrol)
	assert.Equal(t, 88.8, snap.Diesel)
}

func TestExtractFallbackFollowsEnumerationOrder(t *testing.T) {
	body := `{"note":"petrol 106.42","12":"diesel 95.38","3":"rates"}`
	snap, err := extractJSON(t, body)
	require.NoError(t, err)
	// Serialized as {"3":..,"12":"diesel 95.38","note":"petrol 106.42"}.
	assert.Equal(t, 95.38, snap.Petrol)
	assert.Equal(t, 106.42, snap.Diesel)
}
