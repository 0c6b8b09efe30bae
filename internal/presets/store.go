// Package presets persists the user's conversion presets as a JSON array and
// keeps the synthetic session preset in front of them.
package presets

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"tubekit/internal/log"
	"tubekit/internal/model"
)

//go:embed default_presets.json
var bundled []byte

var (
	ErrNotFound  = errors.New("preset not found")
	ErrDuplicate = errors.New("preset already exists")
	ErrReserved  = errors.New("preset name is reserved")
	ErrInvalid   = errors.New("invalid preset")
	ErrIndex     = errors.New("preset index out of range")
)

const reloadDebounce = 200 * time.Millisecond

// DefaultCustom is the initial value of the session preset.
func DefaultCustom() model.ConversionPreset {
	return model.ConversionPreset{
		Name:         model.CustomPresetName,
		Format:       "mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		VideoEnabled: true,
		AudioEnabled: true,
		KeepAspect:   true,
	}
}

// Store holds the preset list. Index 0 of List is always the custom preset;
// only the entries after it are written to disk.
type Store struct {
	path     string
	template []byte
	logger   zerolog.Logger

	mu     sync.RWMutex
	custom model.ConversionPreset
	items  []model.ConversionPreset
}

// Open loads the presets file at path. A missing or unreadable file falls
// back to the bundled template, and a broken template to an empty list.
func Open(path string) *Store {
	s := newStore(path, bundled)
	s.load(false)
	return s
}

func newStore(path string, template []byte) *Store {
	return &Store{
		path:     filepath.Clean(path),
		template: template,
		logger:   log.WithComponent("presets"),
		custom:   DefaultCustom(),
	}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// load re-reads the file. When keepOnError is set a corrupt file leaves the
// current list untouched instead of falling back to the template.
func (s *Store) load(keepOnError bool) bool {
	items, err := readFile(s.path)
	if err != nil {
		if keepOnError {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("ignoring unreadable presets file")
			return false
		}
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("presets file unreadable, using bundled defaults")
		}
		items, err = decode(s.template)
		if err != nil {
			s.logger.Warn().Err(err).Msg("bundled presets unreadable, starting empty")
			items = nil
		}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return true
}

func readFile(path string) ([]model.ConversionPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) ([]model.ConversionPreset, error) {
	var items []model.ConversionPreset
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	out := items[:0]
	for _, p := range items {
		if p.IsCustom() || validate(p) != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func validate(p model.ConversionPreset) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(p.Format) == "":
		return fmt.Errorf("%w: format is required", ErrInvalid)
	case !p.VideoEnabled && !p.AudioEnabled:
		return fmt.Errorf("%w: %q has neither video nor audio enabled", ErrInvalid, p.Name)
	}
	return nil
}

// List returns a copy with the custom preset at index 0.
func (s *Store) List() []model.ConversionPreset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ConversionPreset, 0, len(s.items)+1)
	out = append(out, s.custom)
	return append(out, s.items...)
}

// Get looks a preset up by name, case-insensitively.
func (s *Store) Get(name string) (model.ConversionPreset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.EqualFold(strings.TrimSpace(name), model.CustomPresetName) {
		return s.custom, true
	}
	if i := s.indexOf(name); i >= 0 {
		return s.items[i], true
	}
	return model.ConversionPreset{}, false
}

// Custom returns the session preset.
func (s *Store) Custom() model.ConversionPreset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.custom
}

// SetCustom replaces the session preset. It is never persisted.
func (s *Store) SetCustom(p model.ConversionPreset) error {
	p.Name = model.CustomPresetName
	if err := validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.custom = p
	s.mu.Unlock()
	return nil
}

// Add appends p and rewrites the file.
func (s *Store) Add(p model.ConversionPreset) error {
	if err := validate(p); err != nil {
		return err
	}
	if p.IsCustom() {
		return ErrReserved
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(p.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicate, p.Name)
	}
	next := append(clone(s.items), p)
	return s.commit(next)
}

// Update replaces the preset called name with p; p may carry a new name.
func (s *Store) Update(name string, p model.ConversionPreset) error {
	if err := validate(p); err != nil {
		return err
	}
	if p.IsCustom() {
		return ErrReserved
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if j := s.indexOf(p.Name); j >= 0 && j != i {
		return fmt.Errorf("%w: %q", ErrDuplicate, p.Name)
	}
	next := clone(s.items)
	next[i] = p
	return s.commit(next)
}

// Delete removes the preset called name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	next := append(clone(s.items[:i]), s.items[i+1:]...)
	return s.commit(next)
}

// Move reorders presets using List indices. Index 0 is the custom preset
// and cannot take part.
func (s *Store) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if from < 1 || from > n || to < 1 || to > n {
		return fmt.Errorf("%w: move %d -> %d", ErrIndex, from, to)
	}
	if from == to {
		return nil
	}
	next := clone(s.items)
	p := next[from-1]
	next = append(next[:from-1], next[from:]...)
	i := to - 1
	next = append(next[:i], append([]model.ConversionPreset{p}, next[i:]...)...)
	return s.commit(next)
}

// commit writes next and adopts it on success. Caller holds mu.
func (s *Store) commit(next []model.ConversionPreset) error {
	if next == nil {
		next = []model.ConversionPreset{}
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write presets: %w", err)
	}
	s.items = next
	return nil
}

func (s *Store) indexOf(name string) int {
	name = strings.TrimSpace(name)
	for i, p := range s.items {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

func clone(in []model.ConversionPreset) []model.ConversionPreset {
	return append([]model.ConversionPreset(nil), in...)
}

// Watch reloads the store when the file changes on disk and calls onChange
// with the new list. The watcher stops when ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func([]model.ConversionPreset)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Atomic writes replace the file, so the directory is watched instead.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch presets dir: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Msg("watching presets file")
	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func([]model.ConversionPreset)) {
	defer func() { _ = watcher.Close() }()
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				if s.load(true) && onChange != nil {
					onChange(s.List())
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("presets watcher error")
		}
	}
}
