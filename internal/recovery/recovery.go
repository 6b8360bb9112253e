package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
	"github.com/RajibRobidas/memoirbox-reminders/internal/notify"
	"github.com/RajibRobidas/memoirbox-reminders/internal/store"
)

// ComputeMissed returns one message per (countdown, lead-time) pair whose fire
// time fell inside (lastCheck, now] — alerts that should have fired while the
// process was not running. Order follows the countdown list.
func ComputeMissed(countdowns []domain.Countdown, leadTimes map[int64][]int, lastCheck, now time.Time) []string {
	var missed []string
	for _, cd := range countdowns {
		for _, mins := range leadTimes[cd.ID] {
			fireAt := cd.FireTime(mins)
			if fireAt.After(lastCheck) && !fireAt.After(now) {
				missed = append(missed, domain.MissedMessage(cd.Title, mins))
			}
		}
	}
	return missed
}

// Run performs the startup reconciliation: collect alerts missed since the
// last recorded check, surface them as a single batched banner, and persist
// now as the new marker. The marker is written exactly once per startup,
// whether or not anything was missed.
func Run(ctx context.Context, repo store.Repository, banners *notify.Banners, now time.Time) ([]string, error) {
	lastCheck, err := repo.LastCheck(ctx)
	if err != nil {
		return nil, err
	}
	countdowns, err := repo.ListCountdowns(ctx)
	if err != nil {
		return nil, err
	}
	leadTimes, err := repo.AllLeadTimes(ctx)
	if err != nil {
		return nil, err
	}

	missed := ComputeMissed(countdowns, leadTimes, lastCheck, now)
	if len(missed) > 0 {
		// One combined banner, not one per alert, to avoid a notification
		// storm after a long absence.
		banners.Push(strings.Join(missed, "\n"))
		log.Info().Int("missed", len(missed)).Time("last_check", lastCheck).Msg("missed alerts recovered")
	}

	if err := repo.SetLastCheck(ctx, now); err != nil {
		return missed, err
	}
	return missed, nil
}
