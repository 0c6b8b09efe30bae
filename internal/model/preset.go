package model

import "strings"

// CustomPresetName is the session-scoped preset that is never persisted.
const CustomPresetName = "custom"

// ConversionPreset is a named bundle of container and codec choices.
type ConversionPreset struct {
	Name         string `json:"name"`
	Format       string `json:"format"` // container extension without dot, e.g. "mp4"
	VideoCodec   string `json:"videoCodec,omitempty"`
	AudioCodec   string `json:"audioCodec,omitempty"`
	VideoEnabled bool   `json:"videoEnabled"`
	AudioEnabled bool   `json:"audioEnabled"`

	// Overrides; zero values mean "keep the source".
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	KeepAspect       bool    `json:"keepAspect,omitempty"`
	AspectRatio      string  `json:"aspectRatio,omitempty"`
	VideoBitrateKbps int     `json:"videoBitrateKbps,omitempty"`
	AudioBitrateKbps int     `json:"audioBitrateKbps,omitempty"`
	SampleRate       int     `json:"sampleRate,omitempty"`
	Volume           float64 `json:"volume,omitempty"` // 1.0 = unchanged
	FPS              float64 `json:"fps,omitempty"`
}

// IsCustom reports whether p is the synthetic session preset.
func (p ConversionPreset) IsCustom() bool {
	return strings.EqualFold(p.Name, CustomPresetName)
}

// Ext returns the output extension including the dot.
func (p ConversionPreset) Ext() string {
	f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p.Format)), ".")
	if f == "" {
		f = "mp4"
	}
	return "." + f
}

// AudioOnly reports whether the preset drops the video track.
func (p ConversionPreset) AudioOnly() bool {
	return p.AudioEnabled && !p.VideoEnabled
}
