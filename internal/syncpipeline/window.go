package syncpipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lerim-dev/lerim/internal/errs"
)

// ParseWindowDuration parses the `<n>{s|m|h|d}` grammar into a duration
// (§6 "Window parsing": "30s→30, 2m→120, 1h→3600, 1d→86400; 0s rejected;
// unknown unit rejected").
func ParseWindowDuration(raw string) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("syncpipeline: invalid window %q", raw)
	}
	unit := raw[len(raw)-1]
	numPart := raw[:len(raw)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("syncpipeline: invalid window %q", raw)
	}

	var unitDuration time.Duration
	switch unit {
	case 's':
		unitDuration = time.Second
	case 'm':
		unitDuration = time.Minute
	case 'h':
		unitDuration = time.Hour
	case 'd':
		unitDuration = 24 * time.Hour
	default:
		return 0, fmt.Errorf("syncpipeline: unknown window unit %q", string(unit))
	}
	return time.Duration(n) * unitDuration, nil
}

// MinStartTimeFunc resolves the earliest known session start time, for the
// `all` window literal. Injected so this package doesn't import
// internal/catalog directly for a single lookup.
type MinStartTimeFunc func() (*time.Time, error)

// ResolveWindow implements §6's window grammar: `--window` is mutually
// exclusive with `--since`/`--until`; a duration window produces
// (now-duration, now); `all` resolves to (min(start_time), now); an
// explicit since/until pair is used as given, with a missing until
// defaulting to now.
func ResolveWindow(window, since, until string, minStart MinStartTimeFunc, now time.Time) (*time.Time, *time.Time, error) {
	if window != "" && (since != "" || until != "") {
		return nil, nil, errs.ErrWindowConflict
	}

	if window != "" {
		if window == "all" {
			start, err := minStart()
			if err != nil {
				return nil, nil, fmt.Errorf("syncpipeline: resolve window: %w", err)
			}
			return start, &now, nil
		}
		d, err := ParseWindowDuration(window)
		if err != nil {
			return nil, nil, err
		}
		start := now.Add(-d)
		return &start, &now, nil
	}

	var startPtr, endPtr *time.Time
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, nil, fmt.Errorf("syncpipeline: invalid since %q: %w", since, err)
		}
		startPtr = &t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, nil, fmt.Errorf("syncpipeline: invalid until %q: %w", until, err)
		}
		endPtr = &t
	} else {
		endPtr = &now
	}
	return startPtr, endPtr, nil
}
