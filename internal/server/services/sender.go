package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/senders"
)

// SenderInput describes a sender to create or the new state of one being
// edited. Member fields are only read for groups.
type SenderInput struct {
	Name          string
	Type          models.SenderType
	MemberNames   []string
	MemberUserIDs []string
}

// normalize trims and checks the input. field prefixes error fields so a
// nested draft reports e.g. "new_sender.name".
func (in SenderInput) normalize(field string) (SenderInput, error) {
	prefix := ""
	if field != "" {
		prefix = field + "."
	}

	name, err := common.CheckName(prefix+"name", in.Name)
	if err != nil {
		return in, err
	}
	out := SenderInput{Name: name, Type: in.Type}

	if !out.Type.Valid() {
		return in, common.Validation(prefix+"type", "must be individual or group")
	}
	if out.Type == models.SenderIndividual {
		return out, nil
	}

	seen := map[string]struct{}{}
	for _, raw := range in.MemberNames {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := common.CheckName(prefix+"member_names", raw)
		if err != nil {
			return in, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out.MemberNames = append(out.MemberNames, n)
	}
	for _, id := range in.MemberUserIDs {
		if id = strings.TrimSpace(id); id != "" {
			out.MemberUserIDs = append(out.MemberUserIDs, id)
		}
	}
	if len(out.MemberNames)+len(out.MemberUserIDs) == 0 {
		return in, common.Validation(prefix+"member_names", "a group needs at least one member")
	}
	return out, nil
}

// SenderService manages the sender directory and the placeholder users
// backing sender and member names.
type SenderService struct {
	base
}

func NewSenderService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger) *SenderService {
	return &SenderService{base: newBase(tx, m, logger, "senders")}
}

// ResolveOrCreatePlaceholder returns the placeholder user named name that
// creatorID materialized before, creating it when there is none. Distinct
// creators never share a placeholder.
func (s *SenderService) ResolveOrCreatePlaceholder(ctx context.Context, creatorID, name string) (string, error) {
	name, err := common.CheckName("name", name)
	if err != nil {
		return "", err
	}

	var id string
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		id, err = s.placeholder(ctx, tx, creatorID, name)
		return err
	})
	return id, err
}

func (b *base) placeholder(ctx context.Context, db dbx.DBTX, creatorID, name string) (string, error) {
	repo := b.repomanager.Users(db)

	u, err := repo.FindPlaceholder(ctx, creatorID, name)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	owner := creatorID
	u, err = repo.Create(ctx, &models.User{Name: name, PlaceholderOwnerID: &owner})
	if err != nil {
		return "", err
	}
	b.logger.Debug(ctx, "placeholder user created", "user_id", u.ID, "owner", creatorID)
	return u.ID, nil
}

// materializeSender writes a normalized draft: it creates the sender when
// existing is nil and updates existing in place otherwise, then brings the
// member list in line with the draft.
func (b *base) materializeSender(ctx context.Context, db dbx.DBTX, creatorID string, existing *models.Sender, in SenderInput) (*models.Sender, error) {
	repo := b.repomanager.Senders(db)

	excludeID := ""
	if existing != nil {
		excludeID = existing.ID
	}
	exists, err := repo.NameExists(ctx, creatorID, in.Name, excludeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, senders.DuplicateNameError()
	}

	sender := &models.Sender{Name: in.Name, Type: in.Type, CreatedBy: creatorID}
	wasGroup := false
	if existing == nil {
		if sender, err = repo.Create(ctx, sender); err != nil {
			return nil, err
		}
	} else {
		wasGroup = existing.Type == models.SenderGroup
		sender.ID = existing.ID
		sender.CreatedAt = existing.CreatedAt
		if err := repo.Update(ctx, sender); err != nil {
			return nil, err
		}
	}

	var memberIDs []string
	switch {
	case in.Type == models.SenderIndividual && wasGroup:
		// group to individual: members are detached, nobody replaces them
	case in.Type == models.SenderIndividual:
		id, err := b.placeholder(ctx, db, creatorID, in.Name)
		if err != nil {
			return nil, err
		}
		memberIDs = []string{id}
	default:
		names := b.repomanager.MemberNames(db)
		for _, n := range in.MemberNames {
			id, err := b.placeholder(ctx, db, creatorID, n)
			if err != nil {
				return nil, err
			}
			if err := names.Save(ctx, creatorID, n); err != nil {
				return nil, err
			}
			memberIDs = append(memberIDs, id)
		}
		users := b.repomanager.Users(db)
		for _, id := range in.MemberUserIDs {
			u, err := users.GetByID(ctx, id)
			if err != nil {
				return nil, asValidation(err, "member_user_ids", "unknown user")
			}
			if err := names.Save(ctx, creatorID, u.Name); err != nil {
				return nil, err
			}
			memberIDs = append(memberIDs, id)
		}
	}

	if err := repo.SetMembers(ctx, sender.ID, memberIDs); err != nil {
		return nil, err
	}
	return sender, nil
}

// CreateSender adds a sender owned by actorID.
func (s *SenderService) CreateSender(ctx context.Context, actorID string, in SenderInput) (*models.Sender, error) {
	in, err := in.normalize("")
	if err != nil {
		return nil, err
	}

	var created *models.Sender
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		sender, err := s.materializeSender(ctx, tx, actorID, nil, in)
		if err != nil {
			return err
		}
		created, err = s.repomanager.Senders(tx).GetByID(ctx, sender.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "sender created", "sender_id", created.ID, "type", created.Type, "actor", actorID)
	return created, nil
}

// UpdateSender replaces name, type and members. Only the creator may edit.
func (s *SenderService) UpdateSender(ctx context.Context, actorID, senderID string, in SenderInput) (*models.Sender, error) {
	in, err := in.normalize("")
	if err != nil {
		return nil, err
	}

	var updated *models.Sender
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.repomanager.Senders(tx).GetByID(ctx, senderID)
		if err != nil {
			return err
		}
		if existing.CreatedBy != actorID {
			return common.Permission("only the sender's creator can edit it")
		}
		if _, err := s.materializeSender(ctx, tx, actorID, existing, in); err != nil {
			return err
		}
		updated, err = s.repomanager.Senders(tx).GetByID(ctx, senderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "sender updated", "sender_id", senderID, "actor", actorID)
	return updated, nil
}

// DeleteSender removes a sender no transaction refers to. Only the creator
// may delete.
func (s *SenderService) DeleteSender(ctx context.Context, actorID, senderID string) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.repomanager.Senders(tx).GetByID(ctx, senderID)
		if err != nil {
			return err
		}
		if existing.CreatedBy != actorID {
			return common.Permission("only the sender's creator can delete it")
		}
		return s.repomanager.Senders(tx).Delete(ctx, senderID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "sender deleted", "sender_id", senderID, "actor", actorID)
	return nil
}

// ListSenders returns the senders actorID created or belongs to.
func (s *SenderService) ListSenders(ctx context.Context, actorID string) ([]*models.Sender, error) {
	return s.repomanager.Senders(s.tx.Conn()).ListVisible(ctx, actorID)
}

// GetSender returns a sender visible to actorID.
func (s *SenderService) GetSender(ctx context.Context, actorID, senderID string) (*models.Sender, error) {
	db := s.tx.Conn()

	sender, err := s.repomanager.Senders(db).GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender.CreatedBy == actorID {
		return sender, nil
	}
	member, err := s.repomanager.Senders(db).IsMember(ctx, senderID, actorID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, common.Permission("you cannot view this sender")
	}
	return sender, nil
}

// SavedMemberNames returns the group member names actorID typed before.
func (s *SenderService) SavedMemberNames(ctx context.Context, actorID string) ([]string, error) {
	return s.repomanager.MemberNames(s.tx.Conn()).List(ctx, actorID)
}
