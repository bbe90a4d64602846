package core

import (
	"errors"
	"regexp"
)

// UserSettings holds per-user preferences. It is passed explicitly to
// whatever needs it; nothing reads it from ambient state.
type UserSettings struct {
	CustomPeriodActive   bool   `json:"custom_period_active"`
	CustomPeriodStartDay int    `json:"custom_period_start_day"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	NotificationTime     string `json:"notification_time"`
	DarkMode             bool   `json:"dark_mode"`
	DeleteConfirm        bool   `json:"del_confirm"`
}

var (
	ErrInvalidStartDay         = errors.New("period start day must be between 1 and 31")
	ErrInvalidNotificationTime = errors.New("notification time must be HH:MM")

	notificationTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// DefaultUserSettings is what a user without a settings row gets.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		CustomPeriodActive:   false,
		CustomPeriodStartDay: 1,
		NotificationsEnabled: true,
		NotificationTime:     "19:30",
		DarkMode:             false,
		DeleteConfirm:        true,
	}
}

// PeriodStartDay returns the effective start day: 1 unless a custom period
// is active.
func (s UserSettings) PeriodStartDay() int {
	if !s.CustomPeriodActive {
		return 1
	}
	return s.CustomPeriodStartDay
}

func (s UserSettings) Validate() error {
	if s.CustomPeriodStartDay < 1 || s.CustomPeriodStartDay > 31 {
		return ErrInvalidStartDay
	}
	if !notificationTimeRe.MatchString(s.NotificationTime) {
		return ErrInvalidNotificationTime
	}
	return nil
}
