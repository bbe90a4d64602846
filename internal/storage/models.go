package storage

import "database/sql"

// TransactionRow mirrors a row of the transactions table.
type TransactionRow struct {
	ID                int64
	UserID            string
	GroupID           sql.NullInt64
	Scope             string
	Kind              string
	AmountCents       int64
	Category          string
	Counterparty      string
	Note              string
	Date              string
	Recurring         bool
	Confirmed         bool
	IsRecurringParent bool
	RecurringParentID sql.NullInt64
	RecurringConfig   sql.NullString
	DeletedAt         sql.NullString
	CreatedAt         string
}

// SettingsRow mirrors a row of the user_settings table.
type SettingsRow struct {
	UserID               string
	CustomPeriodActive   bool
	CustomPeriodStartDay int64
	NotificationsEnabled bool
	NotificationTime     string
	DarkMode             bool
	DelConfirm           bool
	UpdatedAt            string
}
