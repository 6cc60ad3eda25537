package models

import "time"

// TaskDateLayout is the calendar day a schedule task belongs to.
const TaskDateLayout = "2006-01-02"

// ScheduleTask is a one-off item on the user's calendar. Completing it feeds
// the streak and pays a small reward; it is never penalised.
type ScheduleTask struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"index:idx_tasks_user_date,priority:1;not null" json:"user_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Category    Domain     `gorm:"type:varchar(16)" json:"category,omitempty"`
	Date        string     `gorm:"type:varchar(10);index:idx_tasks_user_date,priority:2;not null" json:"date"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (t *ScheduleTask) Clone() *ScheduleTask {
	if t == nil {
		return nil
	}
	c := *t
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}
