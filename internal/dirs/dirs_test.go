package dirs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLinuxXDGOverrides(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on linux")
	}
	cfg := t.TempDir()
	cache := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfg)
	t.Setenv("XDG_CACHE_HOME", cache)

	p, err := PresetsPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(cfg, "tubekit", "presets.json"); p != want {
		t.Errorf("PresetsPath = %q, want %q", p, want)
	}
	c, err := CodecCachePath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(cache, "tubekit", "codecs.json"); c != want {
		t.Errorf("CodecCachePath = %q, want %q", c, want)
	}
	tmp, _ := TempBaseDir()
	if want := filepath.Join(cache, "tubekit", "temp"); tmp != want {
		t.Errorf("TempBaseDir = %q, want %q", tmp, want)
	}
}
