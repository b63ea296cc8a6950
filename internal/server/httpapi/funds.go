package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
)

type createFundRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateFundRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type addMemberRequest struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

type overviewResponse struct {
	Funds     []fundSummaryView `json:"funds"`
	FundCount int               `json:"fund_count"`
	Total     string            `json:"total"`
}

type exportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	o, err := s.funds.Overview(r.Context(), actorID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		Funds:     newFundSummaries(o.Funds),
		FundCount: o.FundCount,
		Total:     money(o.Total),
	})
}

func (s *Server) listFunds(w http.ResponseWriter, r *http.Request) {
	list, err := s.funds.ListFunds(r.Context(), actorID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFundSummaries(list))
}

func (s *Server) createFund(w http.ResponseWriter, r *http.Request) {
	var req createFundRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.funds.CreateFund(r.Context(), actorID(r), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFundView(f))
}

func (s *Server) getFund(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.funds.GetFund(r.Context(), actorID(r), fundID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFundDetailView(d))
}

func (s *Server) updateFund(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateFundRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.funds.UpdateFund(r.Context(), actorID(r), fundID, services.FundUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFundView(f))
}

func (s *Server) deleteFund(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.funds.DeleteFund(r.Context(), actorID(r), fundID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addMemberRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := refID("user_id", req.UserID, "unknown user"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.funds.AddMember(r.Context(), actorID(r), fundID, req.UserID, req.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.funds.RemoveMember(r.Context(), actorID(r), fundID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := parseTransactionFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.txs.ListTransactions(r.Context(), actorID(r), fundID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionItems(items))
}

func parseTransactionFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	f := models.TransactionFilter{
		SenderID: q.Get("sender_id"),
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
	if err := optionalRefID("sender_id", f.SenderID, "unknown sender"); err != nil {
		return f, err
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(ledger.DateLayout, raw)
		if err != nil {
			return f, common.Validation(p.name, "must be a valid date (YYYY-MM-DD)")
		}
		*p.dst = &d
	}
	return f, nil
}

func (s *Server) exportFund(w http.ResponseWriter, r *http.Request) {
	fundID, err := pathID(r, "fundID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.exports.ExportFund(r.Context(), actorID(r), fundID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{Key: out.Key, URL: out.URL, ExpiresAt: out.ExpiresAt})
}
