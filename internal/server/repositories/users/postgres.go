package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
)

const userColumns = `id, name, email, password_hash, is_admin, theme_preference, hide_add_member_ui, placeholder_owner_id, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

// InUseError is reported when a delete is blocked by referencing rows.
func InUseError() error {
	return common.NewFieldError(common.ErrorInvalidOperation, "", "user still owns ledger records")
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u     models.User
		email sql.NullString
		owner sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &email, &u.PasswordHash, &u.IsAdmin,
		&u.ThemePreference, &u.HideAddMemberUI, &owner, &u.CreatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if owner.Valid {
		u.PlaceholderOwnerID = &owner.String
	}
	return &u, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// DuplicateEmailError is reported when another account already uses the email.
func DuplicateEmailError() error {
	return common.NewFieldError(common.ErrorDuplicateName, "email", "email is already taken")
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ThemePreference == "" {
		user.ThemePreference = models.ThemeSystem
	}

	query :=
		`INSERT INTO users (name, email, password_hash, is_admin, theme_preference, hide_add_member_ui, placeholder_owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Name, nullable(user.Email), nullableBytes(user.PasswordHash), user.IsAdmin,
		user.ThemePreference, user.HideAddMemberUI, nullable(user.PlaceholderOwnerID),
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, DuplicateEmailError()
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) FindPlaceholder(ctx context.Context, ownerID, name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE placeholder_owner_id = $1 AND name = $2 AND email IS NULL AND password_hash IS NULL
		ORDER BY created_at
		LIMIT 1`
	return r.getOne(ctx, query, ownerID, name)
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM users WHERE lower(email) = lower($1) AND id::text <> $2
	)`
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET name = $2, email = $3, password_hash = $4, is_admin = $5
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Name, nullable(user.Email), nullableBytes(user.PasswordHash), user.IsAdmin)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return DuplicateEmailError()
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) UpdatePreferences(ctx context.Context, id, theme string, hideAddMemberUI bool) error {
	query := `UPDATE users SET theme_preference = $2, hide_add_member_ui = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, theme, hideAddMemberUI)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if dbx.ForeignKeyViolation(err) {
			return InUseError()
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

var sortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
	"role":       "is_admin",
}

func (r *PostgresRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Name)+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Email != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Email)+"%")
		where = append(where, fmt.Sprintf("email ILIKE $%d", len(args)))
	}
	switch filter.Role {
	case "admin":
		where = append(where, "is_admin")
	case "user":
		where = append(where, "NOT is_admin")
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	column, ok := sortColumns[filter.Sort]
	if !ok {
		column = "name"
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id", column, dir)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListFundCandidates(ctx context.Context, fundID string) ([]models.UserRef, error) {
	query := `SELECT id, name FROM users
		WHERE is_admin AND id NOT IN (SELECT user_id FROM fund_members WHERE fund_id = $1)
		ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, fundID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.UserRef
	for rows.Next() {
		var ref models.UserRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
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
