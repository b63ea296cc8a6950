package memberships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, fundID, userID string) (*models.FundMember, error) {
	query := `SELECT fm.fund_id, fm.user_id, u.name, fm.role
		FROM fund_members fm
		JOIN users u ON u.id = fm.user_id
		WHERE fm.fund_id = $1 AND fm.user_id = $2`

	m := &models.FundMember{}
	var role string
	err := r.db.QueryRowContext(ctx, query, fundID, userID).Scan(&m.FundID, &m.UserID, &m.UserName, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.Role = models.Role(role)
	return m, nil
}

func (r *PostgresRepository) List(ctx context.Context, fundID string) ([]*models.FundMember, error) {
	query := `SELECT fm.fund_id, fm.user_id, u.name, fm.role
		FROM fund_members fm
		JOIN users u ON u.id = fm.user_id
		WHERE fm.fund_id = $1
		ORDER BY u.name, u.id`

	rows, err := r.db.QueryContext(ctx, query, fundID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.FundMember
	for rows.Next() {
		m := &models.FundMember{}
		var role string
		if err := rows.Scan(&m.FundID, &m.UserID, &m.UserName, &role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Role = models.Role(role)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, fundID, userID string, role models.Role) error {
	query := `INSERT INTO fund_members (fund_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (fund_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := r.db.ExecContext(ctx, query, fundID, userID, string(role)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, fundID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fund_members WHERE fund_id = $1 AND user_id = $2`, fundID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
