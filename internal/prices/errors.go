package prices

import (
	"errors"
	"fmt"
)

// Process exit statuses for `fuelkl fetch`.
const (
	ExitOK         = 0
	ExitConfig     = 1
	ExitExtraction = 2
	ExitRuntime    = 3
)

// ConfigError is a fatal configuration problem detected before any network activity.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ErrMissingAPIKey is returned when no upstream credential is configured.
var ErrMissingAPIKey = &ConfigError{Msg: "set RAPIDAPI_KEY environment variable (your RapidAPI key)"}

// UpstreamHTTPError reports a non-2xx response from the price API.
type UpstreamHTTPError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("fetch failed %d", e.StatusCode)
}

// ExtractionError means neither the structural scan nor the fallback patterns
// yielded both prices. Dump holds the start of the pretty-printed response.
type ExtractionError struct {
	Dump string
}

func (e *ExtractionError) Error() string {
	return "could not reliably extract petrol/diesel from response"
}

// ExitCode maps an error returned by a fetch run onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return ExitExtraction
	}
	return ExitRuntime
}
