package transactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/shopspring/decimal"
)

const dedupConstraint = "transactions_dedup_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// DuplicateError is the error reported for a repeated (sender, date, amount).
func DuplicateError() error {
	return common.NewFieldError(common.ErrorConflict, "amount", "duplicate transaction")
}

func mapWriteError(err error) error {
	if c, ok := dbx.UniqueViolation(err); ok && c == dedupConstraint {
		return DuplicateError()
	}
	if dbx.ForeignKeyViolation(err) {
		return common.Validation("sender_id", "unknown sender")
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	query := `INSERT INTO transactions (fund_id, sender_id, amount, date, notes, category, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tx.FundID, tx.SenderID, tx.Amount, tx.Date, tx.Notes, tx.Category, tx.CreatedBy,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return tx, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT id, fund_id, sender_id, amount, date, notes, category, created_by, created_at
		FROM transactions WHERE id = $1`

	t := &models.Transaction{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.FundID, &t.SenderID, &t.Amount,
		&t.Date, &t.Notes, &t.Category, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, tx *models.Transaction) error {
	query := `UPDATE transactions
		SET sender_id = $2, amount = $3, date = $4, notes = $5, category = $6
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, tx.ID, tx.SenderID, tx.Amount, tx.Date, tx.Notes, tx.Category)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DuplicateExists(ctx context.Context, fundID, senderID string, date time.Time, amount decimal.Decimal, excludeID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM transactions
		WHERE fund_id = $1 AND sender_id = $2 AND date = $3 AND amount = $4 AND id::text <> $5
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, fundID, senderID, date, amount, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) SenderNameUsed(ctx context.Context, fundID, name string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM transactions t
		JOIN senders s ON s.id = t.sender_id
		WHERE t.fund_id = $1 AND lower(trim(s.name)) = lower(trim($2))
	)`

	var used bool
	if err := r.db.QueryRowContext(ctx, query, fundID, name).Scan(&used); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}

func (r *PostgresRepository) ListByFund(ctx context.Context, fundID string, filter models.TransactionFilter) ([]*models.TransactionView, error) {
	args := []any{fundID}
	where := []string{"t.fund_id = $1"}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.SenderID != "" {
		add("t.sender_id = $%d", filter.SenderID)
	}
	if filter.Category != "" {
		add("lower(t.category) = lower($%d)", strings.TrimSpace(filter.Category))
	}
	if filter.From != nil {
		add("t.date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("t.date <= $%d", *filter.To)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(t.notes ILIKE $%d OR t.category ILIKE $%d OR s.name ILIKE $%d)", n, n, n))
	}

	query := `SELECT t.id, t.fund_id, t.sender_id, t.amount, t.date, t.notes, t.category, t.created_by, t.created_at,
			s.name, s.type, s.created_by, cu.name,
			COALESCE((
				SELECT json_agg(mu.name ORDER BY sm.position)
				FROM sender_members sm
				JOIN users mu ON mu.id = sm.user_id
				WHERE sm.sender_id = s.id
			), '[]'::json)
		FROM transactions t
		JOIN senders s ON s.id = t.sender_id
		JOIN users cu ON cu.id = t.created_by
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.date DESC, t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.TransactionView
	for rows.Next() {
		v := &models.TransactionView{}
		var (
			typ     string
			members []byte
		)
		if err := rows.Scan(&v.ID, &v.FundID, &v.SenderID, &v.Amount, &v.Date, &v.Notes, &v.Category,
			&v.CreatedBy, &v.CreatedAt, &v.SenderName, &typ, &v.SenderCreatedBy, &v.CreatorName, &members); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		v.SenderType = models.SenderType(typ)
		if err := json.Unmarshal(members, &v.SenderMemberNames); err != nil {
			return nil, fmt.Errorf("decode members: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
