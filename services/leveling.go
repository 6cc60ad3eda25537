package services

import (
	"math"
	"time"

	"quest-progression-system/models"
)

// RankThresholds: levels required for each hunter rank, lowest first.
var RankThresholds = []struct {
	Rank     string
	MinLevel int
}{
	{"E", 1},
	{"D", 10},
	{"C", 20},
	{"B", 35},
	{"A", 50},
	{"S", 75},
}

func DetermineRank(level int) string {
	rank := RankThresholds[0].Rank
	for _, t := range RankThresholds {
		if level >= t.MinLevel {
			rank = t.Rank
		}
	}
	return rank
}

// nextRequiredXP is floor(required × 1.5) in integer arithmetic so every
// caller computes the same curve. It saturates at math.MaxInt64.
func nextRequiredXP(required int64) int64 {
	if required > (math.MaxInt64/3)*2 {
		return math.MaxInt64
	}
	return required + required/2
}

// LevelResult reports what an XP award did. Cascaded level-ups collapse into
// a single LeveledUp with the final level.
type LevelResult struct {
	LeveledUp    bool   `json:"leveled_up"`
	NewLevel     int    `json:"new_level"`
	LevelsGained int    `json:"levels_gained"`
	RankedUp     bool   `json:"ranked_up"`
	NewRank      string `json:"new_rank"`
}

// ApplyExperience adds amount to the user's XP and cascades level-ups until
// 0 <= CurrentXP < RequiredXP holds again. A leveled domain also gains
// DomainStep, independent of the cascade. An amount that would overflow
// CurrentXP is rejected with ErrInvalidAmount and nothing changes.
func (r Rules) ApplyExperience(p *models.UserProgress, amount int64, domain models.Domain, now time.Time) (LevelResult, error) {
	if amount < 0 || amount > math.MaxInt64-max(p.CurrentXP, 0) {
		return LevelResult{}, ErrInvalidAmount
	}
	if p.RequiredXP <= 0 {
		p.RequiredXP = models.StartingRequiredXP
	}
	if p.Level < 1 {
		p.Level = models.StartingLevel
	}

	oldRank := p.Rank
	p.CurrentXP += amount
	p.TotalXPEarned = addSaturating(p.TotalXPEarned, amount)

	gained := 0
	for p.CurrentXP >= p.RequiredXP {
		p.Level++
		p.CurrentXP -= p.RequiredXP
		p.RequiredXP = nextRequiredXP(p.RequiredXP)
		gained++
	}

	if domain.Leveled() {
		r.bumpDomain(p, domain, r.DomainStep)
	}

	res := LevelResult{NewLevel: p.Level, NewRank: p.Rank}
	if gained == 0 {
		return res, nil
	}

	p.StatPoints += gained * r.StatPointsPerLevel
	t := now
	p.LastLevelUpAt = &t
	res.LeveledUp = true
	res.LevelsGained = gained

	if newRank := DetermineRank(p.Level); newRank != oldRank {
		p.Rank = newRank
		p.LastRankUpAt = &t
		res.RankedUp = true
		res.NewRank = newRank
	}
	return res, nil
}

// SubtractExperience removes up to amount XP. It never goes below zero and
// never lowers the level. Returns the XP actually removed.
func (r Rules) SubtractExperience(p *models.UserProgress, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	removed := min(amount, p.CurrentXP)
	if removed < 0 {
		removed = 0
	}
	p.CurrentXP -= removed
	return removed, nil
}

func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func (r Rules) bumpDomain(p *models.UserProgress, d models.Domain, step float64) {
	switch d {
	case models.DomainFitness:
		p.FitnessLevel = roundTenth(p.FitnessLevel + step)
	case models.DomainCoding:
		p.CodingLevel = roundTenth(p.CodingLevel + step)
	case models.DomainDiscipline:
		p.DisciplineLevel = roundTenth(p.DisciplineLevel + step)
	}
}

// DomainLevel returns the user's level for d, or the overall level for
// domains that are not tracked separately.
func DomainLevel(p *models.UserProgress, d models.Domain) float64 {
	switch d {
	case models.DomainFitness:
		return p.FitnessLevel
	case models.DomainCoding:
		return p.CodingLevel
	case models.DomainDiscipline:
		return p.DisciplineLevel
	}
	return float64(p.Level)
}

// roundTenth keeps repeated 0.1 steps from drifting (1.1 + 0.1 == 1.2).
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
