package pipeline

import (
	"fmt"

	"tubekit/internal/config"
	"tubekit/internal/downloader"
	"tubekit/internal/failure"
	"tubekit/internal/formats"
	"tubekit/internal/model"
	"tubekit/internal/util/bitrate"
	"tubekit/internal/util/media"
)

// trimmed reports whether the job asks for a section of the source only.
func (j *Job) trimmed() bool {
	return j.Range != nil && !j.Range.IsFull()
}

// PlanDownload turns a download job into a yt-dlp request. With a custom
// range the format is negotiated among non-segmented streams so that the
// section download can cut at keyframes.
func PlanDownload(cfg config.Config, job *Job, workdir string) (downloader.Request, error) {
	if job.Range != nil {
		if err := job.Range.Validate(); err != nil {
			return downloader.Request{}, failure.New(failure.KindOther, "plan download", err)
		}
	}
	req := downloader.Request{
		URL:              job.Source.URL,
		JobID:            job.ID,
		WorkDir:          workdir,
		Basename:         media.DownloadBasename(job.Source),
		AudioOnly:        job.AudioOnly,
		AllowHDR:         cfg.AllowHDR,
		LimitBytesPerSec: bitrate.MbitToBytesPerSec(cfg.SpeedLimitMbit),
	}
	if req.URL == "" {
		return req, failure.New(failure.KindOther, "plan download", fmt.Errorf("job %s has no url", job.ID))
	}
	if job.trimmed() {
		r := *job.Range
		req.Range = &r
	}

	if job.AudioOnly {
		req.AudioQuality = formats.AudioQualityFor(job.Quality)
		req.AudioFormat = job.AudioFormat
		return req, nil
	}

	var height *int
	if h, ok := formats.ParseLabel(job.Quality); ok {
		height = &h
	}
	sel := formats.Negotiate(job.Source.Formats, height, job.trimmed(), formats.Preferences{AllowHDR: cfg.AllowHDR})
	req.Selector = sel.Selector
	return req, nil
}

// needsReencode reports whether a downloaded video has to go through ffmpeg:
// the container is not mp4, H.264 is forced, or the file was cut.
func needsReencode(cfg config.Config, job *Job, path string) bool {
	if job.AudioOnly {
		return false
	}
	return !media.IsMP4(path) || cfg.ForceH264 || job.trimmed()
}

// reencodePreset is the H.264/AAC mp4 target for downloaded videos. The
// first attempt uses the configured hardware encoder.
func reencodePreset(cfg config.Config) model.ConversionPreset {
	return model.ConversionPreset{
		Name:         "mp4",
		Format:       "mp4",
		VideoCodec:   cfg.VideoEncoder(),
		AudioCodec:   "aac",
		VideoEnabled: true,
		AudioEnabled: true,
		KeepAspect:   true,
	}
}
