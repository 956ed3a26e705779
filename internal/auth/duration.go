package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var shortDuration = regexp.MustCompile(`^(\d+)([dw])$`)

// ParseExpiry turns a token lifetime into an absolute expiry relative to now.
// "" and "never" mean no expiry. Accepted forms are Go durations ("36h"),
// days or weeks ("30d", "2w"), and calendar dates ("2027-01-31").
func ParseExpiry(expiresIn string, now time.Time) (*time.Time, error) {
	if expiresIn == "" || expiresIn == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		if dur <= 0 {
			return nil, fmt.Errorf("expiry must be positive: %s", expiresIn)
		}
		t := now.Add(dur)
		return &t, nil
	}

	if m := shortDuration.FindStringSubmatch(expiresIn); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid expiry: %s", expiresIn)
		}
		days := n
		if m[2] == "w" {
			days = n * 7
		}
		t := now.AddDate(0, 0, days)
		return &t, nil
	}

	if t, err := time.Parse("2006-01-02", expiresIn); err == nil {
		if !t.After(now) {
			return nil, fmt.Errorf("expiry date must be in the future: %s", expiresIn)
		}
		return &t, nil
	}

	return nil, fmt.Errorf("invalid expiry %q (use never, 30d, 2w, 36h or YYYY-MM-DD)", expiresIn)
}
