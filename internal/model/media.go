// Package model holds the data types shared by the downloader, encoder and orchestrators.
package model

import (
	"strings"
	"time"
)

// SourceKind tells whether a MediaSource points at a local file or a remote item.
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceRemote
)

// Tags are the user-editable metadata written into output containers.
type Tags struct {
	Title       string
	Artist      string
	Description string
	Year        int
}

// MediaSource identifies what a job works on. Only Tags are edited after creation.
type MediaSource struct {
	Kind SourceKind

	// Local
	Path        string
	Fingerprint string // MD5 of the file content, hex encoded

	// Remote
	URL      string
	ID       string
	Title    string
	Uploader string
	Duration time.Duration
	Formats  []FormatDescriptor

	Description string
	UploadDate  string // YYYYMMDD as reported by yt-dlp
	Thumbnail   string

	Tags Tags
}

// IsRemote reports whether the source is downloaded rather than read from disk.
func (m MediaSource) IsRemote() bool { return m.Kind == SourceRemote }

// DefaultTags derives tags from fetched metadata when the user did not edit them.
func (m MediaSource) DefaultTags() Tags {
	t := m.Tags
	if t.Title == "" {
		t.Title = m.Title
	}
	if t.Artist == "" {
		t.Artist = m.Uploader
	}
	if t.Description == "" {
		t.Description = m.Description
	}
	if t.Year == 0 && len(m.UploadDate) >= 4 {
		y := 0
		for _, r := range m.UploadDate[:4] {
			if r < '0' || r > '9' {
				y = 0
				break
			}
			y = y*10 + int(r-'0')
		}
		t.Year = y
	}
	return t
}

// FormatDescriptor is one stream format offered for a remote item.
type FormatDescriptor struct {
	ID           string
	Ext          string
	Height       int
	Width        int
	VCodec       string
	ACodec       string
	BitrateKbps  float64
	Protocol     string
	DynamicRange string // "SDR", "HDR10", "HLG", ...
	FileSize     int64
}

// IsSegmented reports whether the format is delivered in chunks (DASH/HLS),
// which makes precise trimming unreliable.
func (f FormatDescriptor) IsSegmented() bool {
	p := strings.ToLower(f.Protocol)
	return strings.Contains(p, "dash") || strings.Contains(p, "m3u8") || strings.Contains(p, "ism")
}

// IsHDR reports whether the format carries a non-SDR dynamic range.
func (f FormatDescriptor) IsHDR() bool {
	dr := strings.ToUpper(strings.TrimSpace(f.DynamicRange))
	return dr != "" && dr != "SDR"
}

// HasVideo reports whether the format has a video track.
func (f FormatDescriptor) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format has an audio track.
func (f FormatDescriptor) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// MediaInfo is what ffprobe tells us about a local file.
type MediaInfo struct {
	Width              int
	Height             int
	DurationSec        float64
	VideoCodec         string
	AudioCodec         string
	VideoBitrateKbps   int
	AudioBitrateKbps   int
	SampleRate         int
	DisplayAspectRatio string // e.g. "16:9"
	SizeBytes          int64
	FPS                float64
}

// HasVideo reports whether a video stream was found.
func (mi MediaInfo) HasVideo() bool { return mi.VideoCodec != "" }

// HasAudio reports whether an audio stream was found.
func (mi MediaInfo) HasAudio() bool { return mi.AudioCodec != "" }
