// internal/service/scheduler.go
package service

import (
	"fmt"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

const (
	dayWindow  = 24 * time.Hour
	weekWindow = 7 * 24 * time.Hour

	// deferStep is how far a slot is pushed when a ceiling is hit.
	deferStep = time.Hour
	// maxDeferrals bounds the search so a misconfigured ceiling cannot
	// spin the planner forever.
	maxDeferrals = 24 * 60
)

// ScheduleReader provides live schedule state for an account. Counts are
// always read from the store at decision time; concurrent admission runs for
// campaigns sharing an account make any cached count wrong.
type ScheduleReader interface {
	LastScheduled(accountID int) (time.Time, error)
	CountScheduled(accountID int, from, to time.Time) (int, error)
}

// SlotPlanner assigns send times: strictly increasing, at least Spacing
// apart, starting from the later of now or the end of the existing schedule,
// and never exceeding the account's daily or weekly ceiling in any rolling
// window. Prospects that would exceed a ceiling are deferred, not dropped.
type SlotPlanner struct {
	Spacing time.Duration
	Now     func() time.Time
}

func NewSlotPlanner(spacing time.Duration) *SlotPlanner {
	return &SlotPlanner{Spacing: spacing, Now: time.Now}
}

// NextSlots plans n send times for the given account.
func (p *SlotPlanner) NextSlots(sched ScheduleReader, acct *model.Account, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}

	now := p.Now()
	last, err := sched.LastScheduled(acct.ID)
	if err != nil {
		return nil, err
	}

	cursor := now
	if !last.IsZero() && last.Add(p.Spacing).After(now) {
		cursor = last.Add(p.Spacing)
	}

	slots := make([]time.Time, 0, n)
	planned := make([]time.Time, 0, n)
	deferrals := 0

	for len(slots) < n {
		fits, err := p.fits(sched, acct, cursor, planned)
		if err != nil {
			return nil, err
		}
		if !fits {
			deferrals++
			if deferrals > maxDeferrals {
				return nil, fmt.Errorf("could not place slot within %d deferrals for account %d", maxDeferrals, acct.ID)
			}
			cursor = cursor.Add(deferStep)
			continue
		}
		slots = append(slots, cursor)
		planned = append(planned, cursor)
		cursor = cursor.Add(p.Spacing)
	}

	return slots, nil
}

func (p *SlotPlanner) fits(sched ScheduleReader, acct *model.Account, at time.Time, planned []time.Time) (bool, error) {
	if acct.DailyLimit > 0 {
		stored, err := sched.CountScheduled(acct.ID, at.Add(-dayWindow), at)
		if err != nil {
			return false, err
		}
		if stored+countWithin(planned, at.Add(-dayWindow), at) >= acct.DailyLimit {
			return false, nil
		}
	}
	if acct.WeeklyLimit > 0 {
		stored, err := sched.CountScheduled(acct.ID, at.Add(-weekWindow), at)
		if err != nil {
			return false, err
		}
		if stored+countWithin(planned, at.Add(-weekWindow), at) >= acct.WeeklyLimit {
			return false, nil
		}
	}
	return true, nil
}

func countWithin(times []time.Time, from, to time.Time) int {
	count := 0
	for _, t := range times {
		if t.After(from) && !t.After(to) {
			count++
		}
	}
	return count
}
