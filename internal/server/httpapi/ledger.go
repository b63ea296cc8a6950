package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
)

type senderRequest struct {
	Name          string            `json:"name"`
	Type          models.SenderType `json:"type"`
	MemberNames   []string          `json:"member_names"`
	MemberUserIDs []string          `json:"member_user_ids"`
}

func (req *senderRequest) input() *services.SenderInput {
	if req == nil {
		return nil
	}
	return &services.SenderInput{
		Name:          req.Name,
		Type:          req.Type,
		MemberNames:   req.MemberNames,
		MemberUserIDs: req.MemberUserIDs,
	}
}

// checkRefs rejects member ids that cannot name a user. prefix is the
// enclosing field, if any.
func (req *senderRequest) checkRefs(prefix string) error {
	if req == nil {
		return nil
	}
	for _, id := range req.MemberUserIDs {
		if err := refID(prefix+"member_user_ids", id, "unknown user"); err != nil {
			return err
		}
	}
	return nil
}

type createTransactionRequest struct {
	FundID    string         `json:"fund_id"`
	SenderID  string         `json:"sender_id"`
	NewSender *senderRequest `json:"new_sender"`
	Amount    flexString     `json:"amount"`
	Date      string         `json:"date"`
	Notes     string         `json:"notes"`
	Category  string         `json:"category"`
}

type updateTransactionRequest struct {
	SenderID   string         `json:"sender_id"`
	EditSender *senderRequest `json:"edit_sender"`
	Amount     flexString     `json:"amount"`
	Date       string         `json:"date"`
	Notes      string         `json:"notes"`
	Category   string         `json:"category"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := firstErr(
		refID("fund_id", req.FundID, "unknown fund"),
		optionalRefID("sender_id", req.SenderID, "unknown sender"),
		req.NewSender.checkRefs("new_sender."),
	); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.txs.CreateTransaction(r.Context(), actorID(r), services.CreateTransactionInput{
		FundID:    req.FundID,
		SenderID:  req.SenderID,
		NewSender: req.NewSender.input(),
		Amount:    string(req.Amount),
		Date:      req.Date,
		Notes:     req.Notes,
		Category:  req.Category,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(t))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := pathID(r, "transactionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := firstErr(
		optionalRefID("sender_id", req.SenderID, "unknown sender"),
		req.EditSender.checkRefs("edit_sender."),
	); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.txs.UpdateTransaction(r.Context(), actorID(r), transactionID, services.UpdateTransactionInput{
		SenderID:   req.SenderID,
		EditSender: req.EditSender.input(),
		Amount:     string(req.Amount),
		Date:       req.Date,
		Notes:      req.Notes,
		Category:   req.Category,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(t))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := pathID(r, "transactionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.txs.DeleteTransaction(r.Context(), actorID(r), transactionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSenders(w http.ResponseWriter, r *http.Request) {
	list, err := s.senders.ListSenders(r.Context(), actorID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSenderViews(list))
}

func (s *Server) createSender(w http.ResponseWriter, r *http.Request) {
	var req senderRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.checkRefs(""); err != nil {
		s.writeError(w, r, err)
		return
	}
	sender, err := s.senders.CreateSender(r.Context(), actorID(r), *req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSenderView(sender))
}

func (s *Server) getSender(w http.ResponseWriter, r *http.Request) {
	senderID, err := pathID(r, "senderID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sender, err := s.senders.GetSender(r.Context(), actorID(r), senderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSenderView(sender))
}

func (s *Server) updateSender(w http.ResponseWriter, r *http.Request) {
	senderID, err := pathID(r, "senderID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req senderRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.checkRefs(""); err != nil {
		s.writeError(w, r, err)
		return
	}
	sender, err := s.senders.UpdateSender(r.Context(), actorID(r), senderID, *req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSenderView(sender))
}

func (s *Server) deleteSender(w http.ResponseWriter, r *http.Request) {
	senderID, err := pathID(r, "senderID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.senders.DeleteSender(r.Context(), actorID(r), senderID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) memberNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.senders.SavedMemberNames(r.Context(), actorID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}
