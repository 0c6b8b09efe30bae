// Package dirs resolves the per-user directories tubekit reads and writes.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tubekit"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// xdg resolves a per-OS base directory: the XDG variable and home-relative
// fallback on Linux, a home-relative path on macOS, and fallback() elsewhere.
func xdg(env string, linuxHome, darwinHome []string, fallback func() (string, error)) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, darwinHome...), AppName())...), nil
	case "linux":
		if v := os.Getenv(env); v != "" {
			return filepath.Join(v, AppName()), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, linuxHome...), AppName())...), nil
	default:
		base, err := fallback()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, AppName()), nil
	}
}

// ConfigDir returns the app's configuration directory.
// - Linux: $XDG_CONFIG_HOME/tubekit or ~/.config/tubekit
// - macOS: ~/Library/Application Support/tubekit
// - Windows: %AppData%/tubekit
func ConfigDir() (string, error) {
	return xdg("XDG_CONFIG_HOME", []string{".config"}, []string{"Library", "Application Support"}, os.UserConfigDir)
}

// CacheDir returns the app's cache directory.
// - Linux: $XDG_CACHE_HOME/tubekit or ~/.cache/tubekit
// - macOS: ~/Library/Caches/tubekit
// - Windows: %LocalAppData%/tubekit
func CacheDir() (string, error) {
	return xdg("XDG_CACHE_HOME", []string{".cache"}, []string{"Library", "Caches"}, os.UserCacheDir)
}

// PresetsPath is the JSON preset file.
func PresetsPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "presets.json"), nil
}

// CodecCachePath is where ffmpeg capability listings are cached.
func CodecCachePath() (string, error) {
	d, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "codecs.json"), nil
}

// TempBaseDir returns the shared temp tree under the cache dir.
func TempBaseDir() (string, error) {
	c, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, "temp"), nil
}

// DefaultVideoDir is ~/Videos/tubekit (Movies on macOS).
func DefaultVideoDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Movies", AppName()), nil
	}
	return filepath.Join(home, "Videos", AppName()), nil
}

// DefaultAudioDir is ~/Music/tubekit.
func DefaultAudioDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Music", AppName()), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll ensures config and cache dirs exist.
func EnsureAll() error {
	for _, f := range []func() (string, error){ConfigDir, CacheDir} {
		p, err := f()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
