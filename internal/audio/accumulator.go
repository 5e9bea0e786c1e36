// Package audio assembles streamed audio frames into utterance files.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	artifactPrefix = "recording_"
	artifactExt    = ".ogg"
)

var ErrBufferFull = errors.New("audio buffer limit exceeded")

// Limits bounds a single utterance. Zero values disable the check.
type Limits struct {
	MaxFrames int
	MaxBytes  int64
}

// Accumulator holds the open utterance of one connection. It is not safe for
// concurrent use; the owning controller serializes access.
type Accumulator struct {
	dir       string
	limits    Limits
	buf       bytes.Buffer
	frames    int
	artifacts map[string]struct{}
	now       func() time.Time
}

func NewAccumulator(dir string, limits Limits) *Accumulator {
	return &Accumulator{
		dir:       dir,
		limits:    limits,
		artifacts: make(map[string]struct{}),
		now:       time.Now,
	}
}

// Write appends one frame. When a limit would be exceeded the frame is
// rejected with ErrBufferFull and the buffer is left as it was.
func (a *Accumulator) Write(frame []byte) error {
	if a.limits.MaxFrames > 0 && a.frames+1 > a.limits.MaxFrames {
		return ErrBufferFull
	}
	if a.limits.MaxBytes > 0 && int64(a.buf.Len()+len(frame)) > a.limits.MaxBytes {
		return ErrBufferFull
	}
	a.buf.Write(frame)
	a.frames++
	return nil
}

func (a *Accumulator) Len() int {
	return a.buf.Len()
}

func (a *Accumulator) Frames() int {
	return a.frames
}

// Flush writes the buffered utterance to a new file and returns its path. The
// buffer is empty afterwards whether or not the write succeeded. An empty
// buffer produces an empty file.
func (a *Accumulator) Flush() (string, error) {
	defer a.Reset()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	path := filepath.Join(a.dir, a.artifactName())
	if err := os.WriteFile(path, a.buf.Bytes(), 0o600); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write audio artifact: %w", err)
	}

	a.artifacts[path] = struct{}{}
	return path, nil
}

// Remove deletes a flushed artifact. Missing files are ignored.
func (a *Accumulator) Remove(path string) error {
	delete(a.artifacts, path)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove audio artifact: %w", err)
	}
	return nil
}

// Release drops the open buffer and deletes every artifact still on disk.
func (a *Accumulator) Release() error {
	a.Reset()

	var errs []error
	for path := range a.artifacts {
		if err := a.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Accumulator) Reset() {
	a.buf.Reset()
	a.frames = 0
}

// Pending returns the artifacts flushed but not yet removed.
func (a *Accumulator) Pending() []string {
	out := make([]string, 0, len(a.artifacts))
	for path := range a.artifacts {
		out = append(out, path)
	}
	return out
}

func (a *Accumulator) artifactName() string {
	return artifactPrefix + a.now().Format("20060102_150405") + "_" + uuid.NewString() + artifactExt
}

// SweepStale removes artifacts in dir last modified before now-maxAge.
func SweepStale(dir string, maxAge time.Duration, now time.Time) (int64, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read audio dir: %w", err)
	}

	cutoff := now.Add(-maxAge)
	var removed int64
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
