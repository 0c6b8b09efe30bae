package downloader

import (
	"strings"
	"time"

	"tubekit/internal/model"
)

// YTDLPInfo mirrors fields from yt-dlp --dump-json output that we care about.
type YTDLPInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader"`
	Channel     string        `json:"channel"`
	Duration    float64       `json:"duration"`
	Description string        `json:"description"`
	UploadDate  string        `json:"upload_date"`
	Thumbnail   string        `json:"thumbnail"`
	WebpageURL  string        `json:"webpage_url"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Formats     []YTDLPFormat `json:"formats"`
}

// YTDLPFormat is one entry of the "formats" array.
type YTDLPFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	TBR            float64 `json:"tbr"`
	Protocol       string  `json:"protocol"`
	DynamicRange   string  `json:"dynamic_range"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

// PlaylistEntry is one line of --flat-playlist --dump-json output.
type PlaylistEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
}

// Descriptor converts a yt-dlp format entry into the shared model type.
func (f YTDLPFormat) Descriptor() model.FormatDescriptor {
	size := f.Filesize
	if size == 0 {
		size = f.FilesizeApprox
	}
	return model.FormatDescriptor{
		ID:           f.FormatID,
		Ext:          strings.ToLower(f.Ext),
		Height:       f.Height,
		Width:        f.Width,
		VCodec:       f.VCodec,
		ACodec:       f.ACodec,
		BitrateKbps:  f.TBR,
		Protocol:     f.Protocol,
		DynamicRange: f.DynamicRange,
		FileSize:     size,
	}
}

// Source converts the dump into a remote MediaSource.
func (i YTDLPInfo) Source(url string) model.MediaSource {
	uploader := i.Uploader
	if uploader == "" {
		uploader = i.Channel
	}
	if url == "" {
		url = i.WebpageURL
	}
	fs := make([]model.FormatDescriptor, 0, len(i.Formats))
	for _, f := range i.Formats {
		fs = append(fs, f.Descriptor())
	}
	return model.MediaSource{
		Kind:        model.SourceRemote,
		URL:         url,
		ID:          i.ID,
		Title:       i.Title,
		Uploader:    uploader,
		Duration:    time.Duration(i.Duration * float64(time.Second)),
		Formats:     fs,
		Description: i.Description,
		UploadDate:  i.UploadDate,
		Thumbnail:   i.Thumbnail,
	}
}

// Source converts a flat playlist entry into a remote MediaSource without formats.
func (e PlaylistEntry) Source() model.MediaSource {
	url := e.URL
	if url == "" || !strings.Contains(url, "://") {
		url = "https://www.youtube.com/watch?v=" + e.ID
	}
	uploader := e.Uploader
	if uploader == "" {
		uploader = e.Channel
	}
	return model.MediaSource{
		Kind:     model.SourceRemote,
		URL:      url,
		ID:       e.ID,
		Title:    e.Title,
		Uploader: uploader,
		Duration: time.Duration(e.Duration * float64(time.Second)),
	}
}
