package formats

import (
	"sort"
	"strconv"
	"strings"
)

// Buckets are the canonical resolution heights, ascending.
var Buckets = [...]int{144, 240, 360, 480, 720, 1080, 1440, 2160, 4320, 8640}

// RoundToBucket maps a pixel height onto the canonical list. Exact matches are
// kept; a height strictly between two buckets is promoted one bucket past the
// enclosing upper bound, clamped to the top; heights at or below the bottom
// bucket give the bottom bucket.
func RoundToBucket(height int) int {
	b := Buckets[:]
	if height <= b[0] {
		return b[0]
	}
	i := sort.SearchInts(b, height)
	if i < len(b) && b[i] == height {
		return height
	}
	if i+1 >= len(b) {
		return b[len(b)-1]
	}
	return b[i+1]
}

// ResolutionLabels builds the human-facing list ("1080p", "720p", ...) for a
// set of heights: distinct buckets, tallest first.
func ResolutionLabels(heights []int) []string {
	seen := make(map[int]struct{}, len(heights))
	var uniq []int
	for _, h := range heights {
		if h <= 0 {
			continue
		}
		r := RoundToBucket(h)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		uniq = append(uniq, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(uniq)))
	out := make([]string, len(uniq))
	for i, r := range uniq {
		out[i] = strconv.Itoa(r) + "p"
	}
	return out
}

// ParseLabel turns "720p" or "720" into 720. Empty, "best" and unparsable
// labels return ok=false.
func ParseLabel(label string) (int, bool) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(label)), "p")
	if s == "" || s == "best" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
