package util

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultTempRoot is the shared temp tree used when no temp_dir is configured.
func DefaultTempRoot() string {
	return filepath.Join(os.TempDir(), "tubekit")
}

// MakeTempWorkdir creates a uuid-named directory under root. A name that
// already exists is never reused.
func MakeTempWorkdir(root string) (string, error) {
	if root == "" {
		root = DefaultTempRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	for i := 0; i < 8; i++ {
		dir := filepath.Join(root, uuid.NewString())
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate temp directory under %s", root)
}

// EnsureDir creates the directory path if it does not exist.
func EnsureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// RemoveIfExists deletes the file if present.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SanitizeFilename makes a media title safe to use as a file name on every
// platform. Spaces are kept; reserved characters become underscores.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "untitled"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20:
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, ". _")

	const maxRunes = 180
	if utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
		s = strings.TrimRight(s, ". ")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// FileMD5 returns the hex MD5 digest of the file's content.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
