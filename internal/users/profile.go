package users

import (
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
)

const (
	// DefaultObjective applies to users that never chose one.
	DefaultObjective = nutrition.ObjectiveRecomposition
	// DefaultActivityLevel applies to users that never chose one.
	DefaultActivityLevel = nutrition.ActivityModerate
)

// Profile holds the per-user preferences the analysis and plan endpoints fall back to.
type Profile struct {
	UserID           string                  `gorm:"column:user_id;primaryKey;size:190;not null" json:"user_id"`
	DisplayName      string                  `gorm:"column:display_name;size:320;not null;default:''" json:"display_name"`
	Objective        nutrition.Objective     `gorm:"column:objective;size:32;not null" json:"objective"`
	ActivityLevel    nutrition.ActivityLevel `gorm:"column:activity_level;size:32;not null" json:"activity_level"`
	CreatedAtSeconds int64                   `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64                   `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName exposes the table backing user profiles.
func (Profile) TableName() string {
	return "user_profiles"
}

// ProfileUpdate carries the fields a caller wants to change; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName   *string `json:"display_name"`
	Objective     *string `json:"objective"`
	ActivityLevel *string `json:"activity_level"`
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
