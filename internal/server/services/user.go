package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/auth"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserInput describes an account created by an administrator. Email and
// Password may be empty; such a user cannot log in.
type UserInput struct {
	Name     string
	Email    string
	Password string
	IsAdmin  bool
}

// UserUpdate holds the fields an administrator changes. Nil means unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	IsAdmin  *bool
}

// UserService handles login and token rotation, administrator account
// management and per-user preferences.
type UserService struct {
	base
	jwtSecret []byte
	cfg       *config.Config
}

func NewUserService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		base:      newBase(tx, m, logger, "users"),
		jwtSecret: []byte(cfg.SecretKey),
		cfg:       cfg,
	}
}

// Login verifies credentials and returns a new TokenPair. Unknown emails,
// wrong passwords and placeholder identities all yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.tx.Conn()).GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if user.IsPlaceholder() || len(user.PasswordHash) == 0 {
		return nil, common.ErrorUnauthorized
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).DeleteExpired(ctx, s.now()); err != nil {
			return err
		}
		var err error
		pair, err = s.generateTokenPair(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		if token.Expires.Before(s.now()) {
			return common.ErrRefreshTokenExpired
		}
		pair, err = s.generateTokenPair(ctx, tx, token.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate maps an access token to the user it was issued for.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.repomanager.Users(s.tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if user.IsPlaceholder() {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// Me returns the acting user.
func (s *UserService) Me(ctx context.Context, actorID string) (*models.User, error) {
	return s.repomanager.Users(s.tx.Conn()).GetByID(ctx, actorID)
}

// Register creates an account without an acting administrator. It backs the
// admin CLI, which bootstraps the first administrator.
func (s *UserService) Register(ctx context.Context, in UserInput) (*models.User, error) {
	var created *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.createUser(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "user_id", created.ID, "is_admin", created.IsAdmin)
	return created, nil
}

// CreateUser creates an account on behalf of an administrator.
func (s *UserService) CreateUser(ctx context.Context, actorID string, in UserInput) (*models.User, error) {
	var created *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		var err error
		created, err = s.createUser(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user created", "user_id", created.ID, "actor", actorID)
	return created, nil
}

func (s *UserService) createUser(ctx context.Context, db dbx.DBTX, in UserInput) (*models.User, error) {
	name, err := common.CheckName("name", in.Name)
	if err != nil {
		return nil, err
	}
	email, err := checkEmail(in.Email)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.Users(db)
	if email != nil {
		taken, err := repo.EmailTaken(ctx, *email, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, users.DuplicateEmailError()
		}
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, &models.User{
		Name:            name,
		Email:           email,
		PasswordHash:    hash,
		IsAdmin:         in.IsAdmin,
		ThemePreference: models.ThemeSystem,
	})
}

// UpdateUser changes an account's details on behalf of an administrator.
func (s *UserService) UpdateUser(ctx context.Context, actorID, userID string, in UserUpdate) (*models.User, error) {
	var updated *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if in.Name != nil {
			if u.Name, err = common.CheckName("name", *in.Name); err != nil {
				return err
			}
		}
		if in.Email != nil {
			if u.Email, err = checkEmail(*in.Email); err != nil {
				return err
			}
			if u.Email != nil {
				taken, err := repo.EmailTaken(ctx, *u.Email, u.ID)
				if err != nil {
					return err
				}
				if taken {
					return users.DuplicateEmailError()
				}
			}
		}
		if in.Password != nil && *in.Password != "" {
			if u.PasswordHash, err = hashPassword(*in.Password); err != nil {
				return err
			}
		}
		if in.IsAdmin != nil {
			if !*in.IsAdmin && u.ID == actorID {
				return common.NewFieldError(common.ErrorInvalidOperation, "is_admin", "you cannot revoke your own admin rights")
			}
			u.IsAdmin = *in.IsAdmin
		}

		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user updated", "user_id", userID, "actor", actorID)
	return updated, nil
}

// ListUsers returns users matching filter. Administrators only.
func (s *UserService) ListUsers(ctx context.Context, actorID string, filter models.UserFilter) ([]*models.User, error) {
	db := s.tx.Conn()
	if err := s.requireAdmin(ctx, db, actorID); err != nil {
		return nil, err
	}
	return s.repomanager.Users(db).List(ctx, filter)
}

// DeleteUser removes an account. Administrators cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return common.NewFieldError(common.ErrorInvalidOperation, "", "you cannot delete your own account")
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "user deleted", "user_id", userID, "actor", actorID)
	return nil
}

// UpdateTheme stores the acting user's theme preference.
func (s *UserService) UpdateTheme(ctx context.Context, actorID, theme string) error {
	switch theme {
	case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
	default:
		return common.Validation("theme", "must be light, dark or system")
	}
	return s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		return repo.UpdatePreferences(ctx, u.ID, theme, u.HideAddMemberUI)
	})
}

// UpdateAddMemberUIPreference stores whether the add-member form is hidden
// for the acting user.
func (s *UserService) UpdateAddMemberUIPreference(ctx context.Context, actorID string, hide bool) error {
	return s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		return repo.UpdatePreferences(ctx, u.ID, u.ThemePreference, hide)
	})
}

// --- helpers below ---

func (s *UserService) requireAdmin(ctx context.Context, db dbx.DBTX, actorID string) error {
	actor, err := s.repomanager.Users(db).GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return err
	}
	if !actor.IsAdmin {
		return common.Permission("administrator rights required")
	}
	return nil
}

func (s *UserService) generateTokenPair(ctx context.Context, db dbx.DBTX, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.cfg.AccessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	expires := s.now().Add(s.cfg.RefreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(db).Create(ctx, userID, refresh, expires); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func checkEmail(raw string) (*string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(email) > common.MaxNameLength {
		return nil, common.Validation("email", "must not exceed 255 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, common.Validation("email", "must be a valid email address")
	}
	return &email, nil
}

func hashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, common.Validation("password", "must be at least 8 characters")
	}
	// bcrypt rejects inputs over 72 bytes.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.Validation("password", "must not exceed 72 bytes")
	}
	return hash, nil
}
