package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Store is the flat string-keyed settings backend. Orchestrators never see
// it; they receive the Config built from it by Load.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MapStore is an in-memory Store, used by tests and as an overlay.
type MapStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMapStore copies the initial values into a new MapStore.
func NewMapStore(initial map[string]string) *MapStore {
	m := make(map[string]string, len(initial))
	for k, v := range initial {
		m[k] = v
	}
	return &MapStore{m: m}
}

func (s *MapStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MapStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[key] = value
	return nil
}

// ViperStore reads settings through viper (flags, env, config file, defaults)
// and persists Set calls to the config file when one is known.
type ViperStore struct {
	v    *viper.Viper
	path string
}

// NewViperStore wraps v. path is the file Set writes to; empty disables writes.
func NewViperStore(v *viper.Viper, path string) *ViperStore {
	return &ViperStore{v: v, path: path}
}

// Path is the config file Set writes to.
func (s *ViperStore) Path() string { return s.path }

func (s *ViperStore) Get(key string) (string, bool) {
	if !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

func (s *ViperStore) Set(key, value string) error {
	if _, known := defaults[key]; !known {
		return fmt.Errorf("unknown setting %q", key)
	}
	s.v.Set(key, value)
	if s.path == "" {
		return nil
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Keys lists every recognised setting, sorted.
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dump renders every key with its effective value, one per line.
func Dump(s Store) string {
	var b strings.Builder
	for _, k := range Keys() {
		v, ok := s.Get(k)
		if !ok {
			v = defaults[k]
		}
		fmt.Fprintf(&b, "%s = %s\n", k, v)
	}
	return b.String()
}
