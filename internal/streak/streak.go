// Package streak tracks consecutive-day engagement per user. All day
// boundaries are computed from calendar-date strings in the user's timezone,
// never from raw duration arithmetic, so DST transitions cannot break or
// double-count a streak.
package streak

import (
	"errors"
	"time"

	"github.com/lumenlearn/backend/internal/timezone"
)

// Record is the persisted per-user streak state.
type Record struct {
	UserID           string
	CurrentStreak    int    // consecutive days, 0 = no active streak
	LongestStreak    int    // monotonically non-decreasing
	LastActivityDate string // "YYYY-MM-DD" in the user's timezone, "" = never
	Freezes          int    // unused freeze tokens
	LastFreezeUsed   string // "YYYY-MM-DD", "" = never
}

// UpdateResult describes what one qualifying activity did to the streak.
type UpdateResult struct {
	Started    bool // streak began (first ever activity, or restart after a break)
	Maintained bool // streak continued (same day or consecutive day)
	Broken     bool // a previous streak of length > 0 was lost
	Milestone  int  // milestone length reached on this update, 0 if none
	DailyXP    int  // flat per-day reward; 0 on a same-day repeat
	BonusXP    int  // milestone bonus, 0 if no milestone reached
}

// Status is a read-only projection of a streak at a point in time.
type Status struct {
	CurrentStreak  int
	LongestStreak  int
	ActiveToday    bool
	AtRisk         bool    // active yesterday but not yet today
	HoursRemaining float64 // hours until local midnight; 0 when not at risk
	Freezes        int
}

// DailyReward is the flat XP granted for the first qualifying activity of a
// day.
const DailyReward = 10

// milestoneBonuses maps streak lengths to their one-time bonus, awarded the
// day the streak first reaches that length.
var milestoneBonuses = map[int]int{
	3:   50,
	7:   100,
	14:  150,
	30:  300,
	60:  500,
	90:  750,
	180: 1200,
	365: 2500,
}

// MilestoneBonus returns the bonus for reaching the given streak length,
// or 0 if the length is not a milestone.
func MilestoneBonus(length int) int {
	return milestoneBonuses[length]
}

// CheckAndUpdate applies one qualifying activity to the record and returns
// the new record plus what changed. It is a pure function of its inputs:
// now is supplied by the caller and loc is the user's timezone (nil = UTC).
// Calling it twice on the same day is safe: the second call is a no-op
// beyond Maintained.
func CheckAndUpdate(rec Record, loc *time.Location, now time.Time) (Record, UpdateResult) {
	today := timezone.DateIn(now, loc)
	yesterday := timezone.PrevDate(today)

	var res UpdateResult

	switch {
	case rec.LastActivityDate == "":
		// First ever activity.
		rec.CurrentStreak = 1
		res.Started = true
		res.DailyXP = DailyReward

	case rec.LastActivityDate == today:
		// Idempotent: the day already counted.
		res.Maintained = true

	case rec.LastActivityDate == yesterday:
		rec.CurrentStreak++
		res.Maintained = true
		res.DailyXP = DailyReward
		if bonus := MilestoneBonus(rec.CurrentStreak); bonus > 0 {
			res.Milestone = rec.CurrentStreak
			res.BonusXP = bonus
		}

	default:
		// Gap of two or more days.
		if rec.CurrentStreak > 0 {
			res.Broken = true
		}
		rec.CurrentStreak = 1
		res.Started = true
		res.DailyXP = DailyReward
	}

	rec.LastActivityDate = today
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	return rec, res
}

// GetStatus projects the record onto the given instant without mutating it.
func GetStatus(rec Record, loc *time.Location, now time.Time) Status {
	today := timezone.DateIn(now, loc)
	yesterday := timezone.PrevDate(today)

	st := Status{
		CurrentStreak: rec.CurrentStreak,
		LongestStreak: rec.LongestStreak,
		ActiveToday:   rec.LastActivityDate == today,
		Freezes:       rec.Freezes,
	}

	// At risk only while there is still something to protect: the streak is
	// alive (last activity was yesterday) and today has not counted yet. A
	// streak already broken by a longer gap is not at risk.
	if rec.CurrentStreak > 0 && !st.ActiveToday && rec.LastActivityDate == yesterday {
		st.AtRisk = true
		st.HoursRemaining = timezone.HoursUntilMidnight(now, loc)
	}
	return st
}

// Freeze errors.
var (
	ErrNoFreezes      = errors.New("no freeze tokens available")
	ErrFreezeCooldown = errors.New("a freeze was already used within the cooldown period")
)

// FreezeCooldownDays is the number of whole days that must pass after a
// freeze before another can be consumed.
const FreezeCooldownDays = 7

// UseFreeze consumes a freeze token, marking today as active without running
// the normal increment logic. It manufactures a "maintained" day that
// preserves the current streak across a missed day.
func UseFreeze(rec Record, loc *time.Location, now time.Time) (Record, error) {
	if rec.Freezes <= 0 {
		return rec, ErrNoFreezes
	}
	today := timezone.DateIn(now, loc)
	if rec.LastFreezeUsed != "" && timezone.DaysBetween(rec.LastFreezeUsed, today) <= FreezeCooldownDays {
		return rec, ErrFreezeCooldown
	}

	rec.Freezes--
	rec.LastFreezeUsed = today
	rec.LastActivityDate = today
	return rec, nil
}
