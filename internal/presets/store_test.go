package presets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubekit/internal/model"
)

func names(ps []model.ConversionPreset) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func preset(name, format string) model.ConversionPreset {
	return model.ConversionPreset{Name: name, Format: format, AudioCodec: "aac", AudioEnabled: true, VideoEnabled: true, VideoCodec: "libx264"}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestOpen_MissingFileUsesBundled(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "presets.json"))
	list := s.List()
	require.Greater(t, len(list), 1)
	assert.True(t, list[0].IsCustom())
	assert.Equal(t, "MP4 H.264", list[1].Name)
}

func TestOpen_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := newStore(path, []byte(`[{"name":"A","format":"mp3","audioEnabled":true}]`))
	s.load(false)
	assert.Equal(t, []string{"custom", "A"}, names(s.List()))

	s = newStore(path, []byte("also broken"))
	s.load(false)
	assert.Equal(t, []string{"custom"}, names(s.List()))
}

func TestOpen_DropsPersistedCustomAndInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	writeJSON(t, path, []model.ConversionPreset{
		preset("custom", "mkv"),
		preset("Keep", "mp4"),
		{Name: "Nothing", Format: "mp4"},
	})
	s := Open(path)
	assert.Equal(t, []string{"custom", "Keep"}, names(s.List()))
	assert.Equal(t, "mp4", s.Custom().Format)
}

func TestStore_AddUpdateDeletePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "presets.json")
	s := newStore(path, []byte("[]"))
	s.load(false)

	require.NoError(t, s.Add(preset("One", "mp4")))
	require.NoError(t, s.Add(preset("Two", "mkv")))
	assert.ErrorIs(t, s.Add(preset("one", "webm")), ErrDuplicate)
	assert.ErrorIs(t, s.Add(preset("Custom", "webm")), ErrReserved)
	assert.ErrorIs(t, s.Add(model.ConversionPreset{Name: "x"}), ErrInvalid)

	require.NoError(t, s.Update("two", preset("Deux", "mkv")))
	assert.ErrorIs(t, s.Update("Deux", preset("One", "mkv")), ErrDuplicate)
	assert.ErrorIs(t, s.Update("missing", preset("Z", "mkv")), ErrNotFound)

	onDisk, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Deux"}, names(onDisk))

	require.NoError(t, s.Delete("One"))
	assert.ErrorIs(t, s.Delete("One"), ErrNotFound)

	reopened := newStore(path, nil)
	reopened.load(false)
	assert.Equal(t, []string{"custom", "Deux"}, names(reopened.List()))
}

func TestStore_Move(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	s := newStore(path, []byte("[]"))
	s.load(false)
	for _, n := range []string{"A", "B", "C", "D"} {
		require.NoError(t, s.Add(preset(n, "mp4")))
	}

	require.NoError(t, s.Move(1, 3))
	assert.Equal(t, []string{"custom", "B", "C", "A", "D"}, names(s.List()))
	require.NoError(t, s.Move(4, 1))
	assert.Equal(t, []string{"custom", "D", "B", "C", "A"}, names(s.List()))

	assert.ErrorIs(t, s.Move(0, 2), ErrIndex)
	assert.ErrorIs(t, s.Move(1, 5), ErrIndex)

	onDisk, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "C", "A"}, names(onDisk))
}

func TestStore_SetCustomIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	s := newStore(path, []byte("[]"))
	s.load(false)

	c := preset("whatever", "webm")
	require.NoError(t, s.SetCustom(c))
	got, ok := s.Get("CUSTOM")
	require.True(t, ok)
	assert.Equal(t, "webm", got.Format)
	assert.Equal(t, model.CustomPresetName, got.Name)

	require.NoError(t, s.Add(preset("A", "mp4")))
	onDisk, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(onDisk))
}

func TestStore_WatchReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	writeJSON(t, path, []model.ConversionPreset{preset("Before", "mp4")})
	s := Open(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan []model.ConversionPreset, 4)
	require.NoError(t, s.Watch(ctx, func(ps []model.ConversionPreset) { changed <- ps }))

	writeJSON(t, path, []model.ConversionPreset{preset("After", "mkv")})

	select {
	case ps := <-changed:
		assert.Equal(t, []string{"custom", "After"}, names(ps))
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after external edit")
	}
	_, ok := s.Get("After")
	assert.True(t, ok)
}
