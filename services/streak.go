package services

import (
	"time"

	"quest-progression-system/models"
)

// MilestoneTier is one named streak threshold and its bonus.
type MilestoneTier struct {
	Name            string  `json:"name"`
	Days            int     `json:"days"`
	BonusXP         int64   `json:"bonus_xp"`
	DisciplineBonus float64 `json:"discipline_bonus"`
}

// MilestoneTable unifies the named tiers with the recurring weekly bonus.
// A named tier wins when both match the same streak length.
type MilestoneTable struct {
	Tiers               []MilestoneTier
	RecurringEvery      int
	RecurringXP         int64
	RecurringDiscipline float64
}

var DefaultMilestones = MilestoneTable{
	Tiers: []MilestoneTier{
		{Name: "novice", Days: 3, BonusXP: 50},
		{Name: "consistent", Days: 7, BonusXP: 100, DisciplineBonus: 0.2},
		{Name: "dedicated", Days: 14, BonusXP: 200, DisciplineBonus: 0.2},
		{Name: "committed", Days: 30, BonusXP: 400, DisciplineBonus: 0.3},
		{Name: "unstoppable", Days: 60, BonusXP: 800, DisciplineBonus: 0.5},
		{Name: "legendary", Days: 100, BonusXP: 1500, DisciplineBonus: 1.0},
	},
	RecurringEvery:      7,
	RecurringXP:         100,
	RecurringDiscipline: 0.2,
}

// Match returns the milestone reached at exactly days, if any.
func (t MilestoneTable) Match(days int) (MilestoneTier, bool) {
	if days <= 0 {
		return MilestoneTier{}, false
	}
	for _, tier := range t.Tiers {
		if tier.Days == days {
			return tier, true
		}
	}
	if t.RecurringEvery > 0 && days%t.RecurringEvery == 0 {
		return MilestoneTier{
			Name:            "recurring",
			Days:            days,
			BonusXP:         t.RecurringXP,
			DisciplineBonus: t.RecurringDiscipline,
		}, true
	}
	return MilestoneTier{}, false
}

// Next returns the next named tier strictly above days.
func (t MilestoneTable) Next(days int) (MilestoneTier, bool) {
	for _, tier := range t.Tiers {
		if tier.Days > days {
			return tier, true
		}
	}
	return MilestoneTier{}, false
}

// StreakResult describes what a check-in did to the streak.
type StreakResult struct {
	Changed   bool           `json:"changed"`
	Broken    bool           `json:"broken"` // a previous streak ended before this check-in
	Milestone *MilestoneTier `json:"milestone,omitempty"`
}

// CalendarDaysBetween counts calendar-date boundaries from a to b in loc.
// Wall-clock dates are compared, so DST shifts never produce 0 or 2 for
// consecutive days.
func CalendarDaysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// UpdateStreak records a qualifying check-in at now.
//   - first check-in ever: current = 1
//   - same calendar day: unchanged
//   - next calendar day: current + 1
//   - later: the old streak is broken and today starts a new one at 1
func (r Rules) UpdateStreak(rec models.StreakRecord, now time.Time, loc *time.Location) (models.StreakRecord, StreakResult) {
	var res StreakResult

	if rec.LastCheckIn != nil {
		diff := CalendarDaysBetween(*rec.LastCheckIn, now, loc)
		switch {
		case diff <= 0:
			// Already counted today (or a clock running backwards).
			return rec, res
		case diff == 1:
			rec.Current++
		default:
			res.Broken = rec.Current > 0
			rec.Current = 1
		}
	} else {
		rec.Current = 1
	}

	t := now
	rec.LastCheckIn = &t
	if rec.Current > rec.Longest {
		rec.Longest = rec.Current
	}
	res.Changed = true

	if tier, ok := r.Milestones.Match(rec.Current); ok {
		res.Milestone = &tier
	}
	return rec, res
}

// DecayStreak is the scheduled check: a streak whose last check-in is older
// than yesterday has no consecutive days left and drops to 0. Returns true if
// a non-zero streak was reset.
func (r Rules) DecayStreak(rec models.StreakRecord, asOf time.Time, loc *time.Location) (models.StreakRecord, bool) {
	if rec.LastCheckIn == nil || rec.Current == 0 {
		return rec, false
	}
	if CalendarDaysBetween(*rec.LastCheckIn, asOf, loc) <= 1 {
		return rec, false
	}
	rec.Current = 0
	return rec, true
}

// ApplyMilestoneBonus grants a milestone's XP and discipline bonus.
func (r Rules) ApplyMilestoneBonus(p *models.UserProgress, tier MilestoneTier, now time.Time) (LevelResult, error) {
	res, err := r.ApplyExperience(p, tier.BonusXP, "", now)
	if err != nil {
		return res, err
	}
	if tier.DisciplineBonus > 0 {
		r.bumpDomain(p, models.DomainDiscipline, tier.DisciplineBonus)
	}
	return res, nil
}

// UserLocation resolves the user's timezone, falling back to UTC.
func UserLocation(p *models.UserProgress) *time.Location {
	if p == nil || p.Settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
