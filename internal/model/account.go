// internal/model/account.go
package model

import "time"

const (
	AccountStatusConnected    = "connected"
	AccountStatusDisconnected = "disconnected"
)

// Account binds a workspace to the provider account used for sending, and
// carries that account's capacity ceilings.
type Account struct {
	ID               int       `db:"id" json:"id"`
	WorkspaceID      int       `db:"workspace_id" json:"workspace_id"`
	ProviderAccountID string   `db:"provider_account_id" json:"provider_account_id"`
	Status           string    `db:"status" json:"status"`
	DailyLimit       int       `db:"daily_limit" json:"daily_limit"`
	WeeklyLimit      int       `db:"weekly_limit" json:"weekly_limit"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
