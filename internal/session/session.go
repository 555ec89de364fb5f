package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/samber/lo"
)

var (
	ErrGenerationInProgress = errors.New("image generation is already in progress")
	ErrImageNotFound        = errors.New("image not found")
)

// Session owns one client's gallery and its in-progress guard.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	images       []image.Image
	generating   bool
	lastActivity time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, lastActivity: now}
}

// Begin marks the session as generating. It fails if a generation is
// already outstanding; callers must call End when Begin succeeds.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return ErrGenerationInProgress
	}
	s.generating = true
	s.lastActivity = time.Now()
	return nil
}

func (s *Session) End() {
	s.mu.Lock()
	s.generating = false
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) Append(images ...image.Image) {
	s.mu.Lock()
	s.images = append(s.images, images...)
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Images returns a snapshot of the gallery in insertion order.
func (s *Session) Images() []image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.images)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

func (s *Session) Find(id string) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := lo.Find(s.images, func(img image.Image) bool {
		return img.ID == id
	})
	if !ok {
		return image.Image{}, ErrImageNotFound
	}
	return img, nil
}

// Clear empties the gallery and reports how many images were removed.
func (s *Session) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.images)
	s.images = nil
	s.lastActivity = time.Now()
	return n
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generating {
		return 0
	}
	return now.Sub(s.lastActivity)
}
