package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var dayWeekRe = regexp.MustCompile(`^(\d+)([dw])$`)

// ParseExpiry turns a --expires value into an absolute expiry relative to
// now. "" and "never" mean no expiry. Accepted forms are Go durations
// ("36h", "90m"), day and week counts ("30d", "2w") and calendar dates
// ("2027-01-31", "2027-01-31 18:00", "01/31/2027") read as UTC.
func ParseExpiry(s string, now time.Time) (*time.Time, error) {
	if s == "" || s == "never" {
		return nil, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("expiry must be positive: %s", s)
		}
		t := now.Add(d)
		return &t, nil
	}

	if m := dayWeekRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("expiry must be positive: %s", s)
		}
		days := n
		if m[2] == "w" {
			days = n * 7
		}
		t := now.AddDate(0, 0, days)
		return &t, nil
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02", "01/02/2006 15:04", "01/02/2006"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !t.After(now) {
			return nil, fmt.Errorf("expiry is in the past: %s", s)
		}
		return &t, nil
	}

	return nil, fmt.Errorf("invalid expiry %q (use never, 30d, 2w, 36h or 2027-01-31)", s)
}
