package prices

import "time"

// Snapshot is the document written to prices.json and served to the app shell.
type Snapshot struct {
	Petrol    float64 `json:"petrol"`
	Diesel    float64 `json:"diesel"`
	UpdatedAt string  `json:"updated_at"`
}

// timestampLayout matches the ISO-8601 form browsers produce with
// Date.prototype.toISOString, so the shell can parse it without surprises.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as a UTC ISO-8601 timestamp with milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Valid reports whether both prices are present.
func (s Snapshot) Valid() bool {
	return s.Petrol != 0 && s.Diesel != 0
}
