package funds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/shopspring/decimal"
)

const nameConstraint = "funds_creator_name_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// DuplicateNameError is reported when the creator already uses the name.
func DuplicateNameError() error {
	return common.NewFieldError(common.ErrorDuplicateName, "name", "you already have a fund with this name")
}

func (r *PostgresRepository) Create(ctx context.Context, fund *models.Fund) (*models.Fund, error) {
	query := `INSERT INTO funds (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, fund.Name, fund.Description, fund.CreatedBy).
		Scan(&fund.ID, &fund.CreatedAt)
	if err != nil {
		if c, ok := dbx.UniqueViolation(err); ok && c == nameConstraint {
			return nil, DuplicateNameError()
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return fund, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Fund, error) {
	query := `SELECT id, name, description, created_by, created_at FROM funds WHERE id = $1`

	f := &models.Fund{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&f.ID, &f.Name, &f.Description, &f.CreatedBy, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Update(ctx context.Context, fund *models.Fund) error {
	query := `UPDATE funds SET name = $2, description = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, fund.ID, fund.Name, fund.Description)
	if err != nil {
		if c, ok := dbx.UniqueViolation(err); ok && c == nameConstraint {
			return DuplicateNameError()
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM funds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM funds
		WHERE created_by = $1 AND lower(trim(name)) = lower(trim($2)) AND id::text <> $3
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, creatorID, name, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.FundSummary, error) {
	query := `SELECT f.id, f.name, f.description, f.created_by, f.created_at,
			u.name,
			COALESCE(fm.role, ''),
			COALESCE(t.total, 0),
			COALESCE(t.cnt, 0)
		FROM funds f
		JOIN users u ON u.id = f.created_by
		LEFT JOIN fund_members fm ON fm.fund_id = f.id AND fm.user_id = $1
		LEFT JOIN (
			SELECT fund_id, SUM(amount) AS total, COUNT(*) AS cnt
			FROM transactions GROUP BY fund_id
		) t ON t.fund_id = f.id
		WHERE f.created_by = $1 OR fm.user_id IS NOT NULL
		ORDER BY f.name, f.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.FundSummary
	for rows.Next() {
		s := &models.FundSummary{}
		var role string
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedBy, &s.CreatedAt,
			&s.CreatorName, &role, &s.Total, &s.TransactionCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		s.Role = models.Role(role)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Total(ctx context.Context, fundID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE fund_id = $1`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, fundID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) CreatorName(ctx context.Context, fundID string) (string, error) {
	query := `SELECT u.name FROM funds f JOIN users u ON u.id = f.created_by WHERE f.id = $1`

	var name string
	if err := r.db.QueryRowContext(ctx, query, fundID).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return name, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
