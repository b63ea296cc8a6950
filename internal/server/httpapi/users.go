package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"is_admin"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type addMemberUIRequest struct {
	Hide bool `json:"hide"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.users.ListUsers(r.Context(), actorID(r), models.UserFilter{
		Name:  q.Get("name"),
		Email: q.Get("email"),
		Role:  q.Get("role"),
		Sort:  q.Get("sort"),
		Desc:  q.Get("dir") == "desc",
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(list))
	for _, u := range list {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.CreateUser(r.Context(), actorID(r), services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(u))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.UpdateUser(r.Context(), actorID(r), userID, services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.DeleteUser(r.Context(), actorID(r), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserView(currentUser(r.Context())))
}

func (s *Server) updateTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.UpdateTheme(r.Context(), actorID(r), req.Theme); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateAddMemberUI(w http.ResponseWriter, r *http.Request) {
	var req addMemberUIRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.UpdateAddMemberUIPreference(r.Context(), actorID(r), req.Hide); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
