package notify

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog/log"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
)

// Channel is an extra delivery target for fired alerts (a webhook, a local
// command). Channels are best-effort; a failing channel is logged and skipped.
type Channel interface {
	Send(ctx context.Context, title, body string) error
}

type delivery struct {
	title       string
	leadMinutes int
}

// Notifier delivers fired alerts. Desktop notifications are attempted while
// the facility works; once a delivery fails the notifier falls back to the
// in-app banner feed for the rest of the session. Notify never blocks the
// caller: deliveries are queued and handled by a small worker set, because
// desktop and channel round-trips are slow and timer callbacks must stay cheap.
type Notifier struct {
	banners  *Banners
	channels []Channel
	queue    chan delivery
	workers  int
	timeout  time.Duration
	desktop  atomic.Bool
	dropped  atomic.Uint64
}

type Options struct {
	// Desktop enables the OS notification facility.
	Desktop bool
	// Channels are additional delivery targets.
	Channels []Channel
	// Workers is the delivery goroutine count (default 2).
	Workers int
	// QueueSize bounds pending deliveries (default 64).
	QueueSize int
	// SendTimeout bounds a single channel delivery (default 10s).
	SendTimeout time.Duration
}

func New(opts Options) *Notifier {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	n := &Notifier{
		banners:  NewBanners(),
		channels: opts.Channels,
		queue:    make(chan delivery, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.SendTimeout,
	}
	enabled := opts.Desktop
	if enabled && !desktopAvailable() {
		log.Info().Msg("no desktop notification facility, using banners for this session")
		enabled = false
	}
	n.desktop.Store(enabled)
	return n
}

// desktopAvailable reports whether this host can show OS notifications at all.
// On Linux that needs a session bus or a display; elsewhere beeep talks to the
// OS directly and a per-delivery failure still disables desktop for the session.
func desktopAvailable() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	for _, v := range []string{"DBUS_SESSION_BUS_ADDRESS", "DISPLAY", "WAYLAND_DISPLAY"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func (n *Notifier) Banners() *Banners { return n.banners }

// Dropped reports deliveries discarded because the queue was full.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

// Run processes queued deliveries until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < n.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d := <-n.queue:
					n.deliver(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
}

// Notify queues an alert for delivery. It never fails; if the queue is full
// the alert degrades straight to an in-app banner.
func (n *Notifier) Notify(title string, leadMinutes int) {
	select {
	case n.queue <- delivery{title: title, leadMinutes: leadMinutes}:
	default:
		n.dropped.Add(1)
		log.Warn().Str("title", title).Msg("delivery queue full, posting banner directly")
		n.banners.Push(domain.UpcomingMessage(title, leadMinutes))
	}
}

func (n *Notifier) deliver(ctx context.Context, d delivery) {
	title := domain.NotificationTitle(d.title)
	body := domain.NotificationBody(d.leadMinutes)

	for _, ch := range n.channels {
		cctx, cancel := context.WithTimeout(ctx, n.timeout)
		if err := ch.Send(cctx, title, body); err != nil {
			log.Warn().Err(err).Str("title", d.title).Msg("notification channel failed")
		}
		cancel()
	}

	if n.desktop.Load() {
		err := beeep.Notify(title, body, "")
		if err == nil {
			return
		}
		log.Warn().Err(err).Msg("desktop notification failed, using banners for this session")
		n.desktop.Store(false)
	}
	n.banners.Push(domain.UpcomingMessage(d.title, d.leadMinutes))
}
