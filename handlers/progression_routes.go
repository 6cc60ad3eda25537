// handlers/progression_routes.go
package handlers

import (
	"strconv"
	"strings"
	"time"

	"quest-progression-system/logger"
	"quest-progression-system/middleware"
	"quest-progression-system/models"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressionRoutes mounts the user API under /user and the admin API
// under /s/admin. Both expect the gateway to have set X-User-ID.
func SetupProgressionRoutes(app *fiber.App, svc *services.ProgressionService, log *logger.Logger) {
	log = log.With("handler", "progression")

	userGroup := app.Group("/user", middleware.UserContextMiddleware(log))

	userGroup.Get("/progress", func(c *fiber.Ctx) error {
		sum, err := svc.GetSummary(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(summaryResponse(sum, svc.Rules()))
	})

	userGroup.Get("/progress/badges", func(c *fiber.Ctx) error {
		sum, err := svc.GetSummary(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(badgesResponse(sum.Badges))
	})

	userGroup.Get("/progress/summary", func(c *fiber.Ctx) error {
		tf := services.Timeframe(strings.ToLower(c.Query("timeframe")))
		trends, err := svc.GetProgressTrends(c.UserContext(), middleware.UserID(c), tf)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(trends)
	})

	userGroup.Get("/quests", func(c *fiber.Ctx) error {
		f := services.QuestFilter{}
		for _, s := range splitQuery(c.Query("status")) {
			st := models.QuestStatus(s)
			if !st.Valid() {
				return badRequest(c, "unknown status "+strconv.Quote(s))
			}
			f.Statuses = append(f.Statuses, st)
		}
		for _, s := range splitQuery(c.Query("type")) {
			t := models.QuestType(s)
			if !t.Valid() {
				return badRequest(c, "unknown type "+strconv.Quote(s))
			}
			f.Types = append(f.Types, t)
		}
		f.Limit = c.QueryInt("limit", 100)
		if f.Limit < 1 || f.Limit > 500 {
			f.Limit = 100
		}

		quests, err := svc.ListQuests(c.UserContext(), middleware.UserID(c), f)
		if err != nil {
			return writeError(c, log, err)
		}
		if quests == nil {
			quests = []*models.Quest{}
		}
		return c.JSON(fiber.Map{"quests": quests})
	})

	userGroup.Post("/quests", func(c *fiber.Ctx) error {
		type Req struct {
			Title       string            `json:"title"`
			Description string            `json:"description"`
			Domain      models.Domain     `json:"domain"`
			Difficulty  models.Difficulty `json:"difficulty"`
			Target      int               `json:"target"`
			Deadline    *time.Time        `json:"deadline"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		q, err := svc.AcceptQuest(c.UserContext(), middleware.UserID(c), services.CustomQuestInput{
			Title:       req.Title,
			Description: req.Description,
			Domain:      req.Domain,
			Difficulty:  req.Difficulty,
			Target:      req.Target,
			Deadline:    req.Deadline,
		})
		if err != nil {
			return writeError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(q)
	})

	userGroup.Post("/quests/:id/complete", func(c *fiber.Ctx) error {
		res, err := svc.CompleteQuest(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})

	userGroup.Post("/quests/:id/progress", func(c *fiber.Ctx) error {
		var req struct {
			Value *float64 `json:"value"`
		}
		if err := c.BodyParser(&req); err != nil || req.Value == nil {
			return badRequest(c, "value is required")
		}
		res, err := svc.UpdateQuestProgress(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.Value)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})

	userGroup.Post("/quests/:id/units", func(c *fiber.Ctx) error {
		var req struct {
			Units int `json:"units"`
		}
		if err := c.BodyParser(&req); err != nil || req.Units == 0 {
			return badRequest(c, "units must be a non-zero integer")
		}
		res, err := svc.LogMissionProgress(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Units)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})

	userGroup.Post("/quests/:id/fail", func(c *fiber.Ctx) error {
		q, err := svc.FailQuest(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(q)
	})

	userGroup.Post("/quests/:id/abandon", func(c *fiber.Ctx) error {
		q, err := svc.AbandonQuest(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(q)
	})

	userGroup.Post("/quests/:id/claim", func(c *fiber.Ctx) error {
		res, err := svc.ClaimReward(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})

	userGroup.Post("/stats/spend", func(c *fiber.Ctx) error {
		var req struct {
			Attribute string `json:"attribute"`
			Points    int    `json:"points"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		p, err := svc.SpendStatPoints(c.UserContext(), middleware.UserID(c), req.Attribute, req.Points)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"stat_points": p.StatPoints,
			"attributes":  p.Attributes,
		})
	})

	userGroup.Patch("/settings", func(c *fiber.Ctx) error {
		var req struct {
			PenaltyLevel models.PenaltyLevel `json:"penalty_level"`
			Timezone     string              `json:"timezone"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		p, err := svc.UpdateSettings(c.UserContext(), middleware.UserID(c), req.PenaltyLevel, req.Timezone)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(p.Settings)
	})

	userGroup.Post("/reset", func(c *fiber.Ctx) error {
		p, err := svc.ResetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(p)
	})

	userGroup.Get("/schedule", func(c *fiber.Ctx) error {
		sched, err := svc.GetSchedule(c.UserContext(), middleware.UserID(c), c.Query("from"), c.Query("to"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(sched)
	})

	userGroup.Post("/schedule/tasks", func(c *fiber.Ctx) error {
		var req struct {
			Title       string        `json:"title"`
			Description string        `json:"description"`
			Category    models.Domain `json:"category"`
			Date        string        `json:"date"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		t, err := svc.AddTask(c.UserContext(), middleware.UserID(c), services.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Date:        req.Date,
		})
		if err != nil {
			return writeError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	userGroup.Patch("/schedule/tasks/:id", func(c *fiber.Ctx) error {
		var req struct {
			Title       *string        `json:"title"`
			Description *string        `json:"description"`
			Category    *models.Domain `json:"category"`
			Date        *string        `json:"date"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		t, err := svc.UpdateTask(c.UserContext(), middleware.UserID(c), c.Params("id"), services.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Date:        req.Date,
		})
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(t)
	})

	userGroup.Post("/schedule/tasks/:id/complete", func(c *fiber.Ctx) error {
		res, err := svc.CompleteTask(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(res)
	})

	userGroup.Delete("/schedule/tasks/:id", func(c *fiber.Ctx) error {
		if err := svc.DeleteTask(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return writeError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(log), middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		if req.UserID == "" {
			return badRequest(c, "user_id is required")
		}
		if len(req.Reason) > 255 {
			return badRequest(c, "reason too long")
		}
		if limit := svc.Rules().MaxXPGrant; limit > 0 && req.XP > limit {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "xp must not exceed " + strconv.FormatInt(limit, 10),
				"code":  "invalid_amount",
			})
		}

		p, err := svc.GrantXP(c.UserContext(), req.UserID, req.XP, req.Reason)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": req.UserID,
			"xp":      req.XP,
			"level":   p.Level,
		})
	})

	adminGroup.Post("/maintenance/run", func(c *fiber.Ctx) error {
		var req struct {
			AsOf *time.Time `json:"as_of"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON")
			}
		}
		asOf := services.StartOfDayUTC(time.Now())
		if req.AsOf != nil {
			asOf = req.AsOf.UTC()
		}
		report, err := svc.RunMaintenanceForAll(c.UserContext(), asOf)
		if err != nil {
			return writeError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"as_of":  asOf,
			"report": report,
		})
	})
}

func summaryResponse(sum *services.Summary, rules services.Rules) fiber.Map {
	p := sum.Progress
	return fiber.Map{
		"id":          p.ID,
		"user_id":     p.ExternalUserID,
		"level":       p.Level,
		"current_xp":  p.CurrentXP,
		"required_xp": p.RequiredXP,
		"total_xp":    p.TotalXPEarned,
		"rank":        p.Rank,
		"domain_levels": fiber.Map{
			"fitness":    p.FitnessLevel,
			"coding":     p.CodingLevel,
			"discipline": p.DisciplineLevel,
		},
		"skills":                    skillsResponse(p, rules),
		"streak":                    p.Streak,
		"next_milestone":            sum.NextMilestone,
		"stat_points":               p.StatPoints,
		"attributes":                p.Attributes,
		"settings":                  p.Settings,
		"onboarding_completed":      p.OnboardingCompleted,
		"active_quest_ids":          p.ActiveQuestIDs,
		"active_daily_quest_ids":    p.ActiveDailyQuestIDs,
		"active_weekly_mission_ids": p.ActiveWeeklyMissionIDs,
		"next_daily_refresh_at":     p.NextDailyRefreshAt,
		"next_weekly_refresh_at":    p.NextWeeklyRefreshAt,
		"stats":                     sum.Stats,
		"badges":                    badgesResponse(sum.Badges),
		"last_level_up_at":          p.LastLevelUpAt,
		"last_rank_up_at":           p.LastRankUpAt,
	}
}

func skillsResponse(p *models.UserProgress, rules services.Rules) fiber.Map {
	out := fiber.Map{}
	for name, sk := range p.Skills {
		out[name] = fiber.Map{
			"level":            sk.Level,
			"experience":       sk.Experience,
			"required":         int64(sk.Level) * rules.SkillXPPerLevel,
			"progress_to_next": rules.SkillProgressPercent(sk),
		}
	}
	return out
}

func badgesResponse(badges []models.UserBadge) []fiber.Map {
	out := make([]fiber.Map, 0, len(badges))
	for _, ub := range badges {
		bt, _ := services.BadgeByCode(ub.BadgeCode)
		out = append(out, fiber.Map{
			"id":          ub.ID,
			"code":        ub.BadgeCode,
			"name":        bt.Name,
			"description": bt.Description,
			"rarity":      bt.Rarity,
			"awarded_at":  ub.AwardedAt,
		})
	}
	return out
}

func splitQuery(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
