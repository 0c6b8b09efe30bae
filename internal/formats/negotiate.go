// Package formats picks the stream format to download for a requested quality
// and maps arbitrary pixel heights onto the canonical resolution list.
package formats

import (
	"fmt"
	"sort"
	"strings"

	"tubekit/internal/model"
)

// Preferences narrow the candidate formats.
type Preferences struct {
	AllowHDR       bool
	DisallowedExts []string // defaults to DefaultDisallowedExts when nil
}

// DefaultDisallowedExts are containers we never pick.
var DefaultDisallowedExts = []string{"3gp"}

// SelectBestFormat returns the video format best matching requestedHeight.
// With requireNonSegmented set (trimmed downloads) DASH/HLS formats are skipped.
// A nil requestedHeight picks the highest available.
func SelectBestFormat(available []model.FormatDescriptor, requestedHeight *int, requireNonSegmented bool, prefs Preferences) (model.FormatDescriptor, bool) {
	candidates := filter(available, requireNonSegmented, prefs)
	if len(candidates) == 0 {
		return model.FormatDescriptor{}, false
	}
	sortCandidates(candidates)

	if requestedHeight == nil {
		return candidates[0], true
	}
	want := *requestedHeight
	for _, f := range candidates {
		if f.Height == want {
			return f, true
		}
	}

	best := candidates[0]
	bestDist := absInt(best.Height - want)
	for _, f := range candidates[1:] {
		d := absInt(f.Height - want)
		// Candidates are ordered tallest first, so strict < keeps the taller one on ties.
		if d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, true
}

func filter(available []model.FormatDescriptor, requireNonSegmented bool, prefs Preferences) []model.FormatDescriptor {
	disallowed := prefs.DisallowedExts
	if disallowed == nil {
		disallowed = DefaultDisallowedExts
	}
	out := make([]model.FormatDescriptor, 0, len(available))
	for _, f := range available {
		if !f.HasVideo() || f.Height <= 0 {
			continue
		}
		if requireNonSegmented && f.IsSegmented() {
			continue
		}
		if containsFold(disallowed, f.Ext) {
			continue
		}
		if !prefs.AllowHDR && f.IsHDR() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// sortCandidates orders by height descending, mp4 first on ties, then bitrate.
func sortCandidates(fs []model.FormatDescriptor) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Height != fs[j].Height {
			return fs[i].Height > fs[j].Height
		}
		mi, mj := isMP4(fs[i]), isMP4(fs[j])
		if mi != mj {
			return mi
		}
		return fs[i].BitrateKbps > fs[j].BitrateKbps
	})
}

// FormatSelector turns a chosen format into a yt-dlp -f expression, pairing
// video-only formats with the best m4a audio.
func FormatSelector(f model.FormatDescriptor) string {
	if f.HasAudio() {
		return f.ID
	}
	return fmt.Sprintf("%s+bestaudio[ext=m4a]/%s+bestaudio", f.ID, f.ID)
}

// AudioSelector is the -f expression for audio-only downloads.
func AudioSelector() string {
	return "bestaudio[ext=m4a]/bestaudio"
}

// FallbackSelector builds a height-bounded -f expression for when no format
// catalog is available or nothing in it survived filtering.
func FallbackSelector(requestedHeight *int, requireNonSegmented bool) string {
	var cond strings.Builder
	if requestedHeight != nil && *requestedHeight > 0 {
		fmt.Fprintf(&cond, "[height<=%d]", *requestedHeight)
	}
	if requireNonSegmented {
		cond.WriteString("[protocol!*=dash][protocol!*=m3u8]")
	}
	c := cond.String()
	return fmt.Sprintf("bestvideo%s[ext=mp4]+bestaudio[ext=m4a]/bestvideo%s+bestaudio/best%s", c, c, c)
}

// Selection is the outcome of Negotiate.
type Selection struct {
	Format       *model.FormatDescriptor
	Selector     string
	Renegotiated bool // true when the non-segmented constraint had to be dropped
}

// Negotiate picks a selector for a video download. It first honours the
// trimming constraint; when nothing qualifies it retries without it and finally
// falls back to a generic expression.
func Negotiate(available []model.FormatDescriptor, requestedHeight *int, trimming bool, prefs Preferences) Selection {
	if f, ok := SelectBestFormat(available, requestedHeight, trimming, prefs); ok {
		return Selection{Format: &f, Selector: FormatSelector(f)}
	}
	if trimming {
		if f, ok := SelectBestFormat(available, requestedHeight, false, prefs); ok {
			return Selection{Format: &f, Selector: FormatSelector(f), Renegotiated: true}
		}
	}
	return Selection{Selector: FallbackSelector(requestedHeight, trimming)}
}

func isMP4(f model.FormatDescriptor) bool {
	return strings.EqualFold(strings.TrimPrefix(f.Ext, "."), "mp4")
}

func containsFold(list []string, s string) bool {
	s = strings.TrimPrefix(s, ".")
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
