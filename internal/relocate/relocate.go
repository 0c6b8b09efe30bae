// Package relocate moves finished outputs into their destination directory
// without overwriting anything already there.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"tubekit/internal/failure"
	"tubekit/internal/log"
)

// maxSuffix bounds the collision search.
const maxSuffix = 10000

// Allocator serialises final-path selection. Each chosen path is reserved
// with a zero-byte placeholder so that neither a sibling job nor another
// process can pick it before the move lands.
type Allocator struct {
	mu sync.Mutex
}

// NewAllocator returns a ready Allocator. The zero value is usable too.
func NewAllocator() *Allocator { return &Allocator{} }

// Candidate returns the n-th name tried for name: n=1 is name itself,
// n>=2 is "<stem>_<n><ext>".
func Candidate(name string, n int) string {
	if n <= 1 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

// Reserve picks the first free candidate for name inside dir and creates a
// placeholder there. The caller owns the placeholder.
func (a *Allocator) Reserve(dir, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", failure.Wrap("create destination", err)
	}
	for n := 1; n <= maxSuffix; n++ {
		p := filepath.Join(dir, Candidate(name, n))
		f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return p, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return "", failure.Wrap("reserve "+p, err)
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}

// Place moves src into dir under name (or its first free variant) and
// returns the final path. On failure the placeholder is removed.
func (a *Allocator) Place(ctx context.Context, src, dir, name string) (string, error) {
	dst, err := a.Reserve(dir, name)
	if err != nil {
		return "", err
	}
	if err := Move(ctx, src, dst); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// Move renames src to dst, replacing dst. When they live on different
// volumes it copies then deletes, checking ctx between chunks.
func Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return failure.New(failure.KindCancelled, "move", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return failure.Wrap("move", err)
	}

	log.FromContext(ctx).Debug().Str("src", src).Str("dst", dst).Msg("cross-volume move, copying")
	if err := copyFile(ctx, src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		log.FromContext(ctx).Warn().Err(err).Str("src", src).Msg("remove source after copy")
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return failure.Wrap("open source", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.Wrap("open destination", err)
	}

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(out, ctxReader{ctx: ctx, r: in}, buf); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return failure.New(failure.KindCancelled, "copy", ctx.Err())
		}
		return failure.Wrap("copy", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return failure.Wrap("sync", err)
	}
	if err := out.Close(); err != nil {
		return failure.Wrap("close", err)
	}
	return nil
}
