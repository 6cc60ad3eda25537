package services

import (
	"math"

	"quest-progression-system/models"
)

// SkillResult reports what a skill award did.
type SkillResult struct {
	Skill        string `json:"skill"`
	LeveledUp    bool   `json:"leveled_up"`
	NewLevel     int    `json:"new_level"`
	LevelsGained int    `json:"levels_gained"`
}

// SkillForDomain is the skill a quest or task of domain d trains. Tasks
// without a category train nothing.
func SkillForDomain(d models.Domain) string {
	if !d.Valid() {
		return ""
	}
	return string(d)
}

// skillThreshold is the experience a skill at level needs for the next one.
func (r Rules) skillThreshold(level int) int64 {
	per := r.SkillXPPerLevel
	if per <= 0 {
		per = 50
	}
	if int64(level) > math.MaxInt64/per {
		return math.MaxInt64
	}
	return int64(level) * per
}

// ApplySkillExperience adds amount to one skill and levels it up while its
// experience reaches level × SkillXPPerLevel. Unknown skills start at level 1.
func (r Rules) ApplySkillExperience(p *models.UserProgress, skill string, amount int64) (SkillResult, error) {
	res := SkillResult{Skill: skill}
	if skill == "" {
		return res, nil
	}
	sk, ok := p.Skills[skill]
	if !ok || sk.Level < 1 {
		sk = models.SkillProgress{Level: 1, Experience: max(sk.Experience, 0)}
	}
	if amount < 0 || amount > math.MaxInt64-sk.Experience {
		return res, ErrInvalidAmount
	}

	sk.Experience += amount
	for need := r.skillThreshold(sk.Level); sk.Experience >= need; need = r.skillThreshold(sk.Level) {
		sk.Experience -= need
		sk.Level++
		res.LevelsGained++
	}

	if p.Skills == nil {
		p.Skills = make(map[string]models.SkillProgress, len(models.DefaultSkillNames))
	}
	p.Skills[skill] = sk
	res.NewLevel = sk.Level
	res.LeveledUp = res.LevelsGained > 0
	return res, nil
}

// SkillProgressPercent is how far a skill is toward its next level, 0-100.
func (r Rules) SkillProgressPercent(sk models.SkillProgress) int {
	need := r.skillThreshold(max(sk.Level, 1))
	pct := math.Round(float64(sk.Experience) / float64(need) * 100)
	return int(min(100, max(0, pct)))
}
