package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type AccountRepositoryInterface interface {
	GetByID(id int) (*model.Account, error)
	ListConnected() ([]model.Account, error)
}

// AccountRepository reads workspace account bindings. Bindings are always
// looked up at decision time, never held as per-script constants.
type AccountRepository struct {
	DB *sql.DB
}

func (r *AccountRepository) GetByID(id int) (*model.Account, error) {
	query := `
        SELECT id, workspace_id, provider_account_id, status, daily_limit, weekly_limit, created_at
        FROM accounts WHERE id=$1
    `
	var a model.Account
	err := r.DB.QueryRow(query, id).Scan(
		&a.ID, &a.WorkspaceID, &a.ProviderAccountID, &a.Status,
		&a.DailyLimit, &a.WeeklyLimit, &a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) ListConnected() ([]model.Account, error) {
	query := `
        SELECT id, workspace_id, provider_account_id, status, daily_limit, weekly_limit, created_at
        FROM accounts WHERE status='connected' ORDER BY id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ProviderAccountID, &a.Status, &a.DailyLimit, &a.WeeklyLimit, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
