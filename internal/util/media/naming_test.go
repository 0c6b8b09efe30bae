package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tubekit/internal/model"
)

func TestDownloadBasename(t *testing.T) {
	tests := []struct {
		name string
		src  model.MediaSource
		want string
	}{
		{name: "title", src: model.MediaSource{Title: "Live: at the Hall?"}, want: "Live_ at the Hall"},
		{name: "edited tag wins", src: model.MediaSource{Title: "raw", Tags: model.Tags{Title: "Edited"}}, want: "Edited"},
		{name: "uploader and id", src: model.MediaSource{Uploader: "chan", ID: "abc123"}, want: "chan_abc123"},
		{name: "nothing", src: model.MediaSource{}, want: "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DownloadBasename(tt.src))
		})
	}
}

func TestConvertedName(t *testing.T) {
	p := model.ConversionPreset{Name: "MP3", Format: "mp3"}
	assert.Equal(t, "clip_converted.mp3", ConvertedName("/videos/clip.mkv", "_converted", p))
	assert.Equal(t, "clip.mp4", ConvertedName("clip.webm", "", model.ConversionPreset{}))
}

func TestIsMP4(t *testing.T) {
	assert.True(t, IsMP4("a/b.MP4"))
	assert.False(t, IsMP4("a/b.webm"))
}
