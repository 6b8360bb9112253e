package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Banner is an in-app notification shown until the user dismisses it.
type Banner struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Banners is the session-scoped in-app banner feed. It is the fallback
// delivery path when desktop notifications are unavailable, and the surface
// for the startup missed-alert summary. Banners never auto-expire.
type Banners struct {
	mu    sync.Mutex
	items []Banner
}

func NewBanners() *Banners { return &Banners{} }

func (b *Banners) Push(message string) Banner {
	banner := Banner{
		ID:        "bnr_" + uuid.NewString(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	b.mu.Lock()
	b.items = append(b.items, banner)
	b.mu.Unlock()
	return banner
}

func (b *Banners) List() []Banner {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Banner, len(b.items))
	copy(out, b.items)
	return out
}

// Dismiss removes a banner by id; dismissing an unknown id is a no-op.
func (b *Banners) Dismiss(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, banner := range b.items {
		if banner.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return
		}
	}
}

func (b *Banners) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
