package services

import (
	"math"
	"testing"

	"quest-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySkillExperience_LevelsAtThreshold(t *testing.T) {
	p := newProgress()

	res, err := DefaultRules.ApplySkillExperience(p, "coding", 40)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, models.SkillProgress{Level: 1, Experience: 40}, p.Skills["coding"])

	res, err = DefaultRules.ApplySkillExperience(p, "coding", 10)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, 1, res.LevelsGained)
	assert.Equal(t, models.SkillProgress{Level: 2, Experience: 0}, p.Skills["coding"])
}

func TestApplySkillExperience_Cascades(t *testing.T) {
	p := newProgress()
	p.Skills["fitness"] = models.SkillProgress{Level: 2, Experience: 0}

	// 100 to reach 3, 150 to reach 4.
	res, err := DefaultRules.ApplySkillExperience(p, "fitness", 260)
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewLevel)
	assert.Equal(t, 2, res.LevelsGained)
	assert.Equal(t, int64(10), p.Skills["fitness"].Experience)
	assert.Less(t, p.Skills["fitness"].Experience, DefaultRules.skillThreshold(p.Skills["fitness"].Level))
}

func TestApplySkillExperience_UnknownAndEmptySkill(t *testing.T) {
	p := newProgress()

	res, err := DefaultRules.ApplySkillExperience(p, "music", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewLevel)
	assert.Equal(t, models.SkillProgress{Level: 1, Experience: 5}, p.Skills["music"])

	before := len(p.Skills)
	res, err = DefaultRules.ApplySkillExperience(p, "", 500)
	require.NoError(t, err)
	assert.Equal(t, SkillResult{}, res)
	assert.Len(t, p.Skills, before)
}

func TestApplySkillExperience_RejectsBadAmounts(t *testing.T) {
	p := newProgress()
	p.Skills["coding"] = models.SkillProgress{Level: 1, Experience: 10}

	_, err := DefaultRules.ApplySkillExperience(p, "coding", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = DefaultRules.ApplySkillExperience(p, "coding", math.MaxInt64)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, models.SkillProgress{Level: 1, Experience: 10}, p.Skills["coding"])
}

func TestSkillThreshold_Saturates(t *testing.T) {
	assert.Equal(t, int64(50), DefaultRules.skillThreshold(1))
	assert.Equal(t, int64(250), DefaultRules.skillThreshold(5))
	assert.Equal(t, int64(math.MaxInt64), DefaultRules.skillThreshold(math.MaxInt))
}

func TestSkillProgressPercent(t *testing.T) {
	cases := map[string]struct {
		sk   models.SkillProgress
		want int
	}{
		"empty":    {models.SkillProgress{Level: 1}, 0},
		"half":     {models.SkillProgress{Level: 2, Experience: 50}, 50},
		"almost":   {models.SkillProgress{Level: 1, Experience: 49}, 98},
		"clamped":  {models.SkillProgress{Level: 1, Experience: 500}, 100},
		"zero lvl": {models.SkillProgress{Level: 0, Experience: 25}, 50},
		"negative": {models.SkillProgress{Level: 1, Experience: -5}, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, DefaultRules.SkillProgressPercent(tc.sk))
		})
	}
}

func TestSkillForDomain(t *testing.T) {
	assert.Equal(t, "coding", SkillForDomain(models.DomainCoding))
	assert.Equal(t, "learning", SkillForDomain(models.DomainLearning))
	assert.Equal(t, "", SkillForDomain(""))
	assert.Equal(t, "", SkillForDomain("music"))
}
