// Package media derives output file names for downloaded and converted media.
package media

import (
	"path/filepath"
	"strings"

	"tubekit/internal/model"
	"tubekit/internal/util"
)

// DownloadBasename builds the file name (without extension) for a remote item:
// its title, or the uploader and id when the title is missing.
func DownloadBasename(src model.MediaSource) string {
	title := strings.TrimSpace(src.Tags.Title)
	if title == "" {
		title = strings.TrimSpace(src.Title)
	}
	if title != "" {
		return util.SanitizeFilename(title)
	}
	parts := make([]string, 0, 2)
	if src.Uploader != "" {
		parts = append(parts, src.Uploader)
	}
	if src.ID != "" {
		parts = append(parts, src.ID)
	}
	return util.SanitizeFilename(strings.Join(parts, "_"))
}

// ConvertedName is "<original stem><suffix><preset ext>".
func ConvertedName(originalPath, suffix string, preset model.ConversionPreset) string {
	base := filepath.Base(originalPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + suffix + preset.Ext()
}

// IsMP4 reports whether path has an .mp4 extension.
func IsMP4(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp4")
}
