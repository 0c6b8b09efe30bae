package formats

import "strings"

// AudioQuality maps a user-facing label to a target bitrate and to the value
// yt-dlp expects for --audio-quality (0 best .. 10 worst).
type AudioQuality struct {
	Label     string
	Kbps      int
	YTDLPCode string
}

var audioQualities = []AudioQuality{
	{Label: "best", Kbps: 320, YTDLPCode: "0"},
	{Label: "high", Kbps: 256, YTDLPCode: "2"},
	{Label: "medium", Kbps: 192, YTDLPCode: "5"},
	{Label: "low", Kbps: 128, YTDLPCode: "7"},
}

// AudioQualityFor resolves a label; unknown labels map to "best".
func AudioQualityFor(label string) AudioQuality {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, q := range audioQualities {
		if q.Label == l {
			return q
		}
	}
	return audioQualities[0]
}

// AudioQualityLabels lists the supported labels, best first.
func AudioQualityLabels() []string {
	out := make([]string, len(audioQualities))
	for i, q := range audioQualities {
		out[i] = q.Label
	}
	return out
}
