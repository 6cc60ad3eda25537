package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"quest-progression-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// QuestTemplate is a level-scaled quest blueprint.
// Quantity and XP scale linearly with the user's level in the template's domain.
type QuestTemplate struct {
	Key         string
	Domain      models.Domain
	Difficulty  models.Difficulty
	Title       string // may contain one %d for the scaled quantity
	Description string
	BaseXP      float64
	QtyPerLevel float64 // 0 = title has no quantity

	// Weekly missions only
	TargetPerLevel float64
	FixedTarget    int
}

var DailyTemplates = []QuestTemplate{
	{
		Key: "push-ups", Domain: models.DomainFitness, Difficulty: models.DifficultyEasy,
		Title: "Complete %d push-ups", Description: "Focus on proper form and controlled movement",
		BaseXP: 20, QtyPerLevel: 10,
	},
	{
		Key: "squats", Domain: models.DomainFitness, Difficulty: models.DifficultyEasy,
		Title: "Complete %d squats", Description: "Keep your back straight and go as low as you can",
		BaseXP: 20, QtyPerLevel: 15,
	},
	{
		Key: "coding-practice", Domain: models.DomainCoding, Difficulty: models.DifficultyEasy,
		Title: "Complete %d minutes of coding", Description: "Focus on learning new concepts or practicing existing skills",
		BaseXP: 25, QtyPerLevel: 30,
	},
	{
		Key: "daily-schedule", Domain: models.DomainDiscipline, Difficulty: models.DifficultyMedium,
		Title: "Follow your daily schedule", Description: "Stick to your planned schedule for the entire day",
		BaseXP: 20,
	},
}

var WeeklyTemplates = []QuestTemplate{
	{
		Key: "workout-sessions", Domain: models.DomainFitness, Difficulty: models.DifficultyHard,
		Title: "Complete %d full workout sessions", Description: "Complete your scheduled workouts this week",
		BaseXP: 16, QtyPerLevel: 3, TargetPerLevel: 3,
	},
	{
		Key: "coding-hours", Domain: models.DomainCoding, Difficulty: models.DifficultyMedium,
		Title: "Spend %d hours coding", Description: "Track your total coding time for the week",
		BaseXP: 32, QtyPerLevel: 5, TargetPerLevel: 5,
	},
	{
		Key: "sleep-schedule", Domain: models.DomainDiscipline, Difficulty: models.DifficultyHard,
		Title: "Maintain a consistent sleep schedule", Description: "Go to bed and wake up at consistent times",
		BaseXP: 24, FixedTarget: 7,
	},
}

// CategoryStatRewards is the stat payout claimed after completing a quest.
func CategoryStatRewards(d models.Domain) map[string]int {
	switch d {
	case models.DomainFitness:
		return map[string]int{models.AttrStrength: 2, "endurance": 1}
	case models.DomainCoding:
		return map[string]int{models.AttrIntelligence: 2, "problem_solving": 1}
	case models.DomainLearning:
		return map[string]int{models.AttrIntelligence: 1, "wisdom": 1}
	case models.DomainDiscipline:
		return map[string]int{models.AttrDiscipline: 2, models.AttrConsistency: 1}
	}
	return map[string]int{models.AttrDiscipline: 1}
}

// QuestGenerator builds quest batches. It performs no I/O; whether a batch
// is due is decided by the caller from the stored refresh timestamps.
type QuestGenerator struct {
	Rules Rules
	NewID func() string
}

func NewQuestGenerator(rules Rules) *QuestGenerator {
	return &QuestGenerator{Rules: rules, NewID: uuid.NewString}
}

// GenerateDaily returns today's daily quests, or nil for users who have not
// finished onboarding.
func (g *QuestGenerator) GenerateDaily(p *models.UserProgress, now time.Time) []models.Quest {
	if !p.OnboardingCompleted {
		return nil
	}
	deadline := NextDailyRefresh(now)
	quests := make([]models.Quest, 0, len(DailyTemplates))
	for _, tmpl := range DailyTemplates {
		quests = append(quests, g.fromTemplate(p, tmpl, models.QuestTypeDaily, now, deadline))
	}
	return quests
}

// GenerateWeekly returns this week's missions, or nil before onboarding.
func (g *QuestGenerator) GenerateWeekly(p *models.UserProgress, now time.Time) []models.Quest {
	if !p.OnboardingCompleted {
		return nil
	}
	deadline := NextWeeklyRefresh(now)
	quests := make([]models.Quest, 0, len(WeeklyTemplates))
	for _, tmpl := range WeeklyTemplates {
		q := g.fromTemplate(p, tmpl, models.QuestTypeWeekly, now, deadline)
		q.Target = tmpl.FixedTarget
		if tmpl.TargetPerLevel > 0 {
			q.Target = int(math.Round(tmpl.TargetPerLevel * DomainLevel(p, tmpl.Domain)))
		}
		quests = append(quests, q)
	}
	return quests
}

func (g *QuestGenerator) fromTemplate(p *models.UserProgress, tmpl QuestTemplate, t models.QuestType, now, deadline time.Time) models.Quest {
	level := DomainLevel(p, tmpl.Domain)
	title := tmpl.Title
	if tmpl.QtyPerLevel > 0 {
		title = fmt.Sprintf(tmpl.Title, int(math.Round(tmpl.QtyPerLevel*level)))
	}
	d := deadline
	return models.Quest{
		ID:          g.questID(tmpl.Domain, t, tmpl.Key),
		UserID:      p.ExternalUserID,
		Title:       title,
		Description: tmpl.Description,
		Type:        t,
		Domain:      tmpl.Domain,
		Difficulty:  tmpl.Difficulty,
		Status:      models.QuestActive,
		XPReward:    g.Rules.QuestXP(tmpl.BaseXP, level, tmpl.Difficulty, t),
		Rewards:     models.Rewards{StatDeltas: CategoryStatRewards(tmpl.Domain)},
		CreatedAt:   now,
		Deadline:    &d,
	}
}

// CustomQuestInput is what a user supplies for a self-made quest.
type CustomQuestInput struct {
	Title       string
	Description string
	Domain      models.Domain
	Difficulty  models.Difficulty
	Target      int
	Deadline    *time.Time
}

// NewCustomQuest validates input and prices the quest at
// round(base × level × difficulty × custom multiplier).
func (g *QuestGenerator) NewCustomQuest(p *models.UserProgress, in CustomQuestInput, now time.Time) (*models.Quest, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidQuest)
	}
	if !in.Domain.Valid() {
		return nil, fmt.Errorf("domain %q: %w", in.Domain, ErrInvalidQuest)
	}
	if in.Difficulty == "" {
		in.Difficulty = models.DifficultyEasy
	}
	if !in.Difficulty.Valid() {
		return nil, fmt.Errorf("difficulty %q: %w", in.Difficulty, ErrInvalidQuest)
	}
	if in.Target < 0 {
		return nil, fmt.Errorf("target must be non-negative: %w", ErrInvalidQuest)
	}
	if in.Deadline != nil && !in.Deadline.After(now) {
		return nil, fmt.Errorf("deadline must be in the future: %w", ErrInvalidQuest)
	}

	return &models.Quest{
		ID:          g.questID(in.Domain, models.QuestTypeCustom, title),
		UserID:      p.ExternalUserID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Type:        models.QuestTypeCustom,
		Domain:      in.Domain,
		Difficulty:  in.Difficulty,
		Status:      models.QuestActive,
		XPReward:    g.Rules.QuestXP(g.Rules.CustomQuestBaseXP, float64(p.Level), in.Difficulty, models.QuestTypeCustom),
		Target:      in.Target,
		Rewards:     models.Rewards{StatDeltas: CategoryStatRewards(in.Domain)},
		CreatedAt:   now,
		Deadline:    in.Deadline,
	}, nil
}

// questID is domain + type + slugged key + a random suffix, so batches
// generated within the same second never collide.
func (g *QuestGenerator) questID(d models.Domain, t models.QuestType, key string) string {
	stem := slug.Make(key)
	if len(stem) > 40 {
		stem = strings.Trim(stem[:40], "-")
	}
	if stem == "" {
		stem = "quest"
	}
	return fmt.Sprintf("%s-%s-%s-%s", d, t, stem, g.NewID())
}

// NextDailyRefresh returns the next 00:00 UTC strictly after now.
func NextDailyRefresh(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// NextWeeklyRefresh returns the next Monday 00:00 UTC strictly after now.
func NextWeeklyRefresh(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	daysUntilMonday := (8 - int(day.Weekday())) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7 // If today is Monday, next Monday
	}
	return day.AddDate(0, 0, daysUntilMonday)
}

// DailyDue reports whether a new daily batch should be generated at now.
func DailyDue(p *models.UserProgress, now time.Time) bool {
	return p.OnboardingCompleted && (p.NextDailyRefreshAt == nil || !now.Before(*p.NextDailyRefreshAt))
}

func WeeklyDue(p *models.UserProgress, now time.Time) bool {
	return p.OnboardingCompleted && (p.NextWeeklyRefreshAt == nil || !now.Before(*p.NextWeeklyRefreshAt))
}
