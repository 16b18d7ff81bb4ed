package middleware

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Profile names used by the HTTP routes
const (
	ProfileRegister = "register"
	ProfileLogin    = "login"
	ProfileDefault  = "default"
)

// Limit is one fixed window: at most Requests per Window
type Limit struct {
	Requests int64
	Window   time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Requests, windowName(l.Window))
}

// DefaultProfiles returns the built-in limit strings per profile
func DefaultProfiles() map[string]string {
	return map[string]string{
		ProfileRegister: "5/minute",
		ProfileLogin:    "10/minute",
		ProfileDefault:  "100/minute,1000/hour",
	}
}

// ParseLimits parses a comma separated list such as "100/minute,1000/hour".
// Units are second, minute, hour and day, singular or plural. The result is
// ordered from the shortest window to the longest.
func ParseLimits(spec string) ([]Limit, error) {
	var limits []Limit
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		count, unit, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("invalid rate limit %q: expected <count>/<unit>", part)
		}

		n, err := strconv.ParseInt(strings.TrimSpace(count), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid rate limit %q: count must be a positive integer", part)
		}

		window, err := parseWindow(strings.TrimSpace(unit))
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit %q: %w", part, err)
		}

		limits = append(limits, Limit{Requests: n, Window: window})
	}

	if len(limits) == 0 {
		return nil, fmt.Errorf("invalid rate limit %q: no limits given", spec)
	}

	sort.SliceStable(limits, func(i, j int) bool { return limits[i].Window < limits[j].Window })
	for i := 1; i < len(limits); i++ {
		if limits[i].Window == limits[i-1].Window {
			return nil, fmt.Errorf("invalid rate limit %q: window %s given twice", spec, windowName(limits[i].Window))
		}
	}
	return limits, nil
}

// ParseProfiles parses every profile and fills in missing defaults
func ParseProfiles(specs map[string]string) (map[string][]Limit, error) {
	merged := DefaultProfiles()
	for name, spec := range specs {
		if strings.TrimSpace(spec) != "" {
			merged[name] = spec
		}
	}

	profiles := make(map[string][]Limit, len(merged))
	for name, spec := range merged {
		limits, err := ParseLimits(spec)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		profiles[name] = limits
	}
	return profiles, nil
}

func parseWindow(unit string) (time.Duration, error) {
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "second", "sec":
		return time.Second, nil
	case "minute", "min":
		return time.Minute, nil
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
}

func windowName(d time.Duration) string {
	switch d {
	case time.Second:
		return "second"
	case time.Minute:
		return "minute"
	case time.Hour:
		return "hour"
	case 24 * time.Hour:
		return "day"
	default:
		return d.String()
	}
}
