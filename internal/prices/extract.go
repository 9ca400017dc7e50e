package prices

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxScanDepth bounds the recursive key scan. Upstream payloads are a few
// levels deep; anything deeper is malformed.
const maxScanDepth = 64

// dumpLimit is the number of characters of the response kept for diagnosis.
const dumpLimit = 2000

var (
	petrolKeys = []string{"petrol", "petrol_price", "petrolprice", "petrol_rate", "p"}
	dieselKeys = []string{"diesel", "diesel_price", "dieselprice", "diesel_rate", "d"}

	// Last-resort patterns run over the serialized response.
	twoDecimalsRe    = regexp.MustCompile(`\d{2,3}\.\d{2}`)
	upToTwoDecimalRe = regexp.MustCompile(`\d{2,3}\.\d{1,2}`)
)

// scanResult accumulates the first value found for each field.
// A zero price or empty timestamp means "not found yet".
type scanResult struct {
	Petrol    float64
	Diesel    float64
	UpdatedAt string
}

// Extract derives a Snapshot from a decoded upstream response. When the
// response is a non-empty array its last element is taken as the most
// recent record. now supplies updated_at when the record carries no timestamp.
func Extract(root *Value, now time.Time) (Snapshot, error) {
	candidate := root
	if root != nil && root.Kind == Array && len(root.Items) > 0 {
		candidate = root.Items[len(root.Items)-1]
	}

	var res scanResult
	res.scan(candidate, 0)

	if res.Petrol == 0 || res.Diesel == 0 {
		if err := res.fallback(root); err != nil {
			return Snapshot{}, err
		}
	}

	if res.Petrol == 0 || res.Diesel == 0 {
		return Snapshot{}, &ExtractionError{Dump: dump(root)}
	}

	updated := res.UpdatedAt
	if updated == "" {
		updated = FormatTimestamp(now)
	}
	return Snapshot{Petrol: res.Petrol, Diesel: res.Diesel, UpdatedAt: updated}, nil
}

// scan walks v depth-first in enumeration order (see Value.Ordered). Each
// field keeps the first value found; a later or deeper match never overrides it.
func (r *scanResult) scan(v *Value, depth int) {
	if v == nil || depth > maxScanDepth {
		return
	}
	switch v.Kind {
	case Array:
		for _, it := range v.Items {
			if it.IsContainer() {
				r.scan(it, depth+1)
			}
		}
	case Object:
		for _, m := range v.Ordered() {
			key := strings.ToLower(m.Key)
			if r.Petrol == 0 && matchesAny(key, petrolKeys) {
				if f, ok := numeric(m.Value); ok {
					r.Petrol = f
				}
			}
			if r.Diesel == 0 && matchesAny(key, dieselKeys) {
				if f, ok := numeric(m.Value); ok {
					r.Diesel = f
				}
			}
			if r.UpdatedAt == "" && isTimestampKey(key) {
				r.UpdatedAt = m.Value.String()
			}
			if m.Value.IsContainer() {
				r.scan(m.Value, depth+1)
			}
		}
	}
}

// fallback fills whichever price is still unset from numbers found in the
// serialized response. It only applies when at least two numbers are found.
func (r *scanResult) fallback(root *Value) error {
	raw, err := root.MarshalJSON()
	if err != nil {
		return err
	}
	s := string(raw)

	nums := twoDecimalsRe.FindAllString(s, -1)
	if nums == nil {
		nums = upToTwoDecimalRe.FindAllString(s, -1)
	}
	if len(nums) < 2 {
		return nil
	}
	if r.Petrol == 0 {
		r.Petrol, _ = parseNumber(nums[0])
	}
	if r.Diesel == 0 {
		r.Diesel, _ = parseNumber(nums[1])
	}
	return nil
}

func matchesAny(key string, aliases []string) bool {
	for _, a := range aliases {
		if key == a {
			return true
		}
	}
	return false
}

func isTimestampKey(key string) bool {
	return strings.Contains(key, "updated") ||
		strings.Contains(key, "date") ||
		strings.Contains(key, "time")
}

// numeric accepts JSON numbers and values whose text starts with a digit.
func numeric(v *Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if f, ok := v.Float(); ok {
		return f, f != 0
	}
	s := v.String()
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	return parseNumber(s)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0, false
	}
	return f, true
}

func dump(root *Value) string {
	s, err := root.Indent()
	if err != nil {
		return ""
	}
	if utf8.RuneCountInString(s) <= dumpLimit {
		return s
	}
	return string([]rune(s)[:dumpLimit])
}
