package services

import (
	"math"

	"quest-progression-system/models"
)

// Rules holds every tunable of the progression engine. The zero value is not
// usable; start from DefaultRules.
type Rules struct {
	ActiveQuestCap     int
	DomainStep         float64 // domain level gained per qualifying XP award
	StatPointsPerLevel int
	FailPenaltyXP      int64 // explicit failure is penalty-free by default
	MaxXPGrant         int64 // upper bound of one GrantXP call
	SkillXPPerLevel    int64 // a skill at level n needs n × this to level up
	TaskXP             int64 // paid for every completed schedule task

	PenaltyMultipliers    map[models.PenaltyLevel]float64
	DifficultyMultipliers map[models.Difficulty]float64
	TypeMultipliers       map[models.QuestType]float64

	CustomQuestBaseXP float64 // per user level
	Milestones        MilestoneTable
}

var DefaultRules = Rules{
	ActiveQuestCap:     5,
	DomainStep:         0.1,
	StatPointsPerLevel: 3,
	FailPenaltyXP:      0,
	MaxXPGrant:         1_000_000,
	SkillXPPerLevel:    50,
	TaskXP:             5,
	PenaltyMultipliers: map[models.PenaltyLevel]float64{
		models.PenaltyGentle:   0.3,
		models.PenaltyModerate: 0.5,
		models.PenaltyStrict:   1.0,
	},
	DifficultyMultipliers: map[models.Difficulty]float64{
		models.DifficultyEasy:   1,
		models.DifficultyMedium: 1.5,
		models.DifficultyHard:   2.5,
		models.DifficultyEpic:   4,
	},
	TypeMultipliers: map[models.QuestType]float64{
		models.QuestTypeDaily:  1,
		models.QuestTypeWeekly: 2.5,
		models.QuestTypeCustom: 1.2,
	},
	CustomQuestBaseXP: 10,
	Milestones:        DefaultMilestones,
}

// PenaltyMultiplier falls back to moderate for unknown settings.
func (r Rules) PenaltyMultiplier(level models.PenaltyLevel) float64 {
	if m, ok := r.PenaltyMultipliers[level]; ok {
		return m
	}
	return r.PenaltyMultipliers[models.PenaltyModerate]
}

// QuestXP computes a quest's reward at creation:
// round(base × scale × difficulty × type), never below 1.
func (r Rules) QuestXP(base, scale float64, d models.Difficulty, t models.QuestType) int64 {
	dm, ok := r.DifficultyMultipliers[d]
	if !ok {
		dm = 1
	}
	tm, ok := r.TypeMultipliers[t]
	if !ok {
		tm = 1
	}
	xp := int64(math.Round(base * scale * dm * tm))
	if xp < 1 {
		xp = 1
	}
	return xp
}
