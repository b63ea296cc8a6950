package senders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

const nameConstraint = "senders_creator_name_key"

const selectSender = `SELECT s.id, s.name, s.type, s.created_by, s.created_at, u.name,
		COALESCE((
			SELECT json_agg(json_build_object('id', mu.id, 'name', mu.name) ORDER BY sm.position)
			FROM sender_members sm
			JOIN users mu ON mu.id = sm.user_id
			WHERE sm.sender_id = s.id
		), '[]'::json)
	FROM senders s
	JOIN users u ON u.id = s.created_by`

type PostgresRepository struct {
	db dbx.DBTX
}

// InUseError is reported when a delete is blocked by referencing rows.
func InUseError() error {
	return common.NewFieldError(common.ErrorInvalidOperation, "", "sender is still used by transactions")
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type memberJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSender(row rowScanner) (*models.Sender, error) {
	s := &models.Sender{}
	var (
		typ     string
		members []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &typ, &s.CreatedBy, &s.CreatedAt, &s.CreatorName, &members); err != nil {
		return nil, err
	}
	s.Type = models.SenderType(typ)

	var decoded []memberJSON
	if err := json.Unmarshal(members, &decoded); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	s.Members = make([]models.UserRef, 0, len(decoded))
	for _, m := range decoded {
		s.Members = append(s.Members, models.UserRef{ID: m.ID, Name: m.Name})
	}
	return s, nil
}

// DuplicateNameError is reported when the creator already uses the name.
func DuplicateNameError() error {
	return common.NewFieldError(common.ErrorDuplicateName, "name", "you already have a sender with this name")
}

func (r *PostgresRepository) Create(ctx context.Context, sender *models.Sender) (*models.Sender, error) {
	query := `INSERT INTO senders (name, type, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, sender.Name, string(sender.Type), sender.CreatedBy).
		Scan(&sender.ID, &sender.CreatedAt)
	if err != nil {
		if c, ok := dbx.UniqueViolation(err); ok && c == nameConstraint {
			return nil, DuplicateNameError()
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sender, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Sender, error) {
	s, err := scanSender(r.db.QueryRowContext(ctx, selectSender+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, sender *models.Sender) error {
	res, err := r.db.ExecContext(ctx, `UPDATE senders SET name = $2, type = $3 WHERE id = $1`,
		sender.ID, sender.Name, string(sender.Type))
	if err != nil {
		if c, ok := dbx.UniqueViolation(err); ok && c == nameConstraint {
			return DuplicateNameError()
		}
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

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM senders WHERE id = $1`, id)
	if err != nil {
		if dbx.ForeignKeyViolation(err) {
			return InUseError()
		}
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

func (r *PostgresRepository) NameExists(ctx context.Context, creatorID, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM senders
		WHERE created_by = $1 AND lower(trim(name)) = lower(trim($2)) AND id::text <> $3
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, creatorID, name, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) SetMembers(ctx context.Context, senderID string, userIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sender_members WHERE sender_id = $1`, senderID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query := `INSERT INTO sender_members (sender_id, user_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (sender_id, user_id) DO NOTHING`

	for i, id := range userIDs {
		if _, err := r.db.ExecContext(ctx, query, senderID, id, i); err != nil {
			if dbx.ForeignKeyViolation(err) {
				return common.Validation("member_user_ids", "unknown user")
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListVisible(ctx context.Context, userID string) ([]*models.Sender, error) {
	query := selectSender + `
	WHERE s.created_by = $1
		OR EXISTS (SELECT 1 FROM sender_members v WHERE v.sender_id = s.id AND v.user_id = $1)
	ORDER BY s.name, s.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Sender
	for rows.Next() {
		s, err := scanSender(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, senderID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM sender_members WHERE sender_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, senderID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
