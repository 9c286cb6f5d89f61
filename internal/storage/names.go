package storage

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// NameGenerator produces upload names of the form file.<nanos>.<ext>.
// The timestamp component strictly increases across calls, even when the
// clock stalls or goes backwards, so concurrent uploads never collide.
type NameGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewNameGenerator starts from the current time.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{now: time.Now}
}

func (g *NameGenerator) next() int64 {
	for {
		last := g.last.Load()
		candidate := max(g.now().UnixNano(), last+1)
		if g.last.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}

// Next returns a fresh name keeping the extension of originalName.
// Names without an extension get "bin".
func (g *NameGenerator) Next(originalName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(originalName)), "."))
	if ext == "" {
		ext = "bin"
	}
	return "file." + strconv.FormatInt(g.next(), 10) + "." + ext
}
