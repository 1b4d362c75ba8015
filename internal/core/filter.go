package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/winsync/internal/model"
)

// PruneStale drops entries whose LastSeen is older than timeout. The entry
// with keepID survives regardless, since a surface never times itself out.
// It returns the survivors and the ids that were removed.
func PruneStale(entries []model.WindowEntry, now time.Time, timeout time.Duration, keepID string) ([]model.WindowEntry, []string) {
	kept := make([]model.WindowEntry, 0, len(entries))
	var removed []string

	for _, e := range entries {
		if e.ID != keepID && e.IsStale(now, timeout) {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}

	return kept, removed
}

// FilterOptions specifies criteria for filtering entries for display.
type FilterOptions struct {
	SeenWithin time.Duration     // Only entries refreshed within this window (0=all)
	Metadata   map[string]string // Metadata key=value pairs, all must match
	Limit      int               // Maximum results (0=unlimited)
}

// Filter filters entries based on the provided options.
func Filter(entries []model.WindowEntry, now time.Time, opts FilterOptions) []model.WindowEntry {
	result := make([]model.WindowEntry, 0, len(entries))

	for _, e := range entries {
		if opts.SeenWithin > 0 && e.IsStale(now, opts.SeenWithin) {
			continue
		}
		if !matchesMetadata(e, opts.Metadata) {
			continue
		}
		result = append(result, e)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

func matchesMetadata(e model.WindowEntry, want map[string]string) bool {
	for k, v := range want {
		got, ok := e.Metadata[k]
		if !ok || fmt.Sprint(got) != v {
			return false
		}
	}
	return true
}

// ParseMetadata parses key=value pairs into a metadata map.
func ParseMetadata(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

// ParseDuration parses a duration string with extended formats.
// Supports: 30s, 5m, 48h, 7d, 1w, 0 (none)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	// Handle day suffix (7d -> 168h)
	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle week suffix (1w -> 168h)
	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
