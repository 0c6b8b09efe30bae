// Package codecs discovers what the installed ffmpeg can encode and mux, and
// caches the answer per ffmpeg binary.
package codecs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"tubekit/internal/encoder"
	"tubekit/internal/log"
	"tubekit/internal/model"
	"tubekit/internal/util"
)

// Capabilities is the content of codecs.json.
type Capabilities struct {
	FFmpegHash string    `json:"ffmpegHash"`
	Codecs     []Codec   `json:"codecs"`
	Encoders   []Encoder `json:"encoders"`
	Formats    []Format  `json:"formats"`
}

// HasEncoder reports whether ffmpeg lists an encoder with that name.
func (c Capabilities) HasEncoder(name string) bool {
	for _, e := range c.Encoders {
		if e.Name == name {
			return true
		}
	}
	return false
}

// CanMux reports whether ffmpeg can write the container format.
func (c Capabilities) CanMux(format string) bool {
	format = strings.ToLower(format)
	for _, f := range c.Formats {
		if f.Mux && f.Name == format {
			return true
		}
	}
	return false
}

// HardwareEncoders lists the hardware video encoders ffmpeg was built with, sorted.
func (c Capabilities) HardwareEncoders() []string {
	var out []string
	for _, e := range c.Encoders {
		if e.Kind == "video" && encoder.IsHardwareEncoder(e.Name) {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}

// container names ffmpeg knows under a different muxer name
var muxerAlias = map[string]string{
	"mkv": "matroska",
	"m4a": "ipod",
	"mov": "mov",
	"ts":  "mpegts",
}

// Validate checks that every encoder and the container a preset needs are available.
func (c Capabilities) Validate(p model.ConversionPreset) error {
	var errs []error
	if p.VideoEnabled && p.VideoCodec != "" && p.VideoCodec != "copy" && !c.HasEncoder(p.VideoCodec) {
		errs = append(errs, fmt.Errorf("video encoder %q not available", p.VideoCodec))
	}
	if p.AudioEnabled && p.AudioCodec != "" && p.AudioCodec != "copy" && !c.HasEncoder(p.AudioCodec) {
		errs = append(errs, fmt.Errorf("audio encoder %q not available", p.AudioCodec))
	}
	f := strings.TrimPrefix(p.Ext(), ".")
	if alias, ok := muxerAlias[f]; ok {
		f = alias
	}
	if !c.CanMux(f) {
		errs = append(errs, fmt.Errorf("container %q cannot be written", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("preset %q: %w", p.Name, errors.Join(errs...))
	}
	return nil
}

// Cache loads Capabilities from disk and regenerates them whenever the
// ffmpeg binary's MD5 changes.
type Cache struct {
	Path       string
	FFmpegPath string
	Runner     util.CmdRunner
}

// Load returns cached capabilities, refreshing the cache when stale, missing
// or unreadable.
func (c *Cache) Load(ctx context.Context) (Capabilities, error) {
	logger := log.FromContext(ctx)

	hash, err := util.FileMD5(c.FFmpegPath)
	if err != nil {
		return Capabilities{}, fmt.Errorf("hash ffmpeg binary: %w", err)
	}

	if caps, err := c.read(); err == nil && caps.FFmpegHash == hash {
		return caps, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", c.Path).Msg("codec cache unreadable, regenerating")
	}

	caps, err := c.generate(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	caps.FFmpegHash = hash

	if err := c.write(caps); err != nil {
		logger.Warn().Err(err).Str("path", c.Path).Msg("write codec cache")
	}
	return caps, nil
}

func (c *Cache) read() (Capabilities, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return Capabilities{}, err
	}
	var caps Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

func (c *Cache) write(caps Capabilities) error {
	data, err := json.MarshalIndent(caps, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(c.Path, data, 0o644)
}

func (c *Cache) generate(ctx context.Context) (Capabilities, error) {
	runner := c.Runner
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	run := func(flag string) ([]byte, error) {
		res, err := runner.Run(ctx, util.CmdSpec{
			Path:          c.FFmpegPath,
			Args:          []string{"-hide_banner", flag},
			RequireOutput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("ffmpeg %s: %w", flag, err)
		}
		return res.Stdout, nil
	}

	codecsOut, err := run("-codecs")
	if err != nil {
		return Capabilities{}, err
	}
	encodersOut, err := run("-encoders")
	if err != nil {
		return Capabilities{}, err
	}
	formatsOut, err := run("-formats")
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{
		Codecs:   ParseCodecs(codecsOut),
		Encoders: ParseEncoders(encodersOut),
		Formats:  ParseFormats(formatsOut),
	}, nil
}
