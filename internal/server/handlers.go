package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/middleware"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type sessionView struct {
	Username    string        `json:"username"`
	Role        tripAuth.Role `json:"role"`
	Deleted     bool          `json:"deleted"`
	AccessToken string        `json:"accessToken"`
}

type memberView struct {
	Username     string        `json:"username"`
	Role         tripAuth.Role `json:"role"`
	Verified     bool          `json:"verified"`
	Deleted      bool          `json:"deleted"`
	DeletedAt    *time.Time    `json:"deletedAt,omitempty"`
	Email        string        `json:"email,omitempty"`
	Nickname     string        `json:"nickname,omitempty"`
	ProfileImage string        `json:"profileImage,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func newSessionView(res *tripAuth.LoginResult) sessionView {
	return sessionView{
		Username:    res.Username,
		Role:        res.Role,
		Deleted:     res.Deleted,
		AccessToken: res.AccessToken,
	}
}

func newMemberView(m tripAuth.Member) memberView {
	v := memberView{
		Username:     m.Username,
		Role:         m.Role,
		Verified:     m.Verified,
		Deleted:      m.Deleted,
		Email:        m.Email,
		Nickname:     m.Nickname,
		ProfileImage: m.ProfileImage,
		Provider:     m.Provider,
		CreatedAt:    m.CreatedAt,
	}
	if m.Deleted && !m.DeletedAt.IsZero() {
		at := m.DeletedAt
		v.DeletedAt = &at
	}
	return v
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		middleware.WriteError(w, fmt.Errorf("%w: %v", tripAuth.ErrInvalidRequest, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		middleware.WriteError(w, fmt.Errorf("%w: %v", tripAuth.ErrInvalidRequest, err))
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.cookies.SetSession(w, r, res)
	middleware.WriteOK(w, "login success", newSessionView(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	access := middleware.AccessToken(r, s.cookies.AccessName())
	if access == "" {
		middleware.WriteError(w, tripAuth.ErrUnauthenticated)
		return
	}
	refresh := middleware.CookieValue(r, s.cookies.RefreshName())

	res, err := s.engine.Refresh(r.Context(), access, refresh)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.cookies.SetSession(w, r, res)
	middleware.WriteOK(w, "token refreshed", newSessionView(res))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Logout(r.Context(), middleware.AccessToken(r, s.cookies.AccessName()))
	s.cookies.Clear(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteOK(w, "logout success", middleware.Empty{})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, _ := tripAuth.IdentityFromContext(r.Context())
	ctx := r.Context()

	m, err := s.members.GetMemberByUsername(ctx, id.Username)
	if err != nil {
		s.writeMemberError(w, err)
		return
	}
	window := s.engine.Config().Account.RestoreWindow
	if !m.Deleted {
		middleware.WriteError(w, fmt.Errorf("%w: member is not deleted", tripAuth.ErrRestoreNotAllowed))
		return
	}
	if !m.CanBeRestored(s.now(), window) {
		middleware.WriteError(w, fmt.Errorf("%w: restore window closed", tripAuth.ErrRestoreNotAllowed))
		return
	}

	if err := s.members.Restore(ctx, m.Username); err != nil {
		s.writeMemberError(w, err)
		return
	}
	m, err = s.members.GetMemberByUsername(ctx, m.Username)
	if err != nil {
		s.writeMemberError(w, err)
		return
	}

	// the caller's tokens still say deleted=true; hand out a fresh pair
	res, err := s.engine.IssueSession(ctx, m)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.cookies.SetSession(w, r, res)
	s.logger.WithField("username", m.Username).Info("member restored")
	middleware.WriteOK(w, "account restored", newMemberView(m))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := tripAuth.IdentityFromContext(r.Context())
	ctx := r.Context()

	if err := s.engine.Logout(ctx, middleware.AccessToken(r, s.cookies.AccessName())); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.members.SoftDelete(ctx, id.Username, s.now()); err != nil {
		s.writeMemberError(w, err)
		return
	}
	s.cookies.Clear(w, r)
	s.logger.WithField("username", id.Username).Info("member soft-deleted")
	middleware.WriteOK(w, "account deleted", middleware.Empty{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := tripAuth.IdentityFromContext(r.Context())
	m, err := s.members.GetMemberByUsername(r.Context(), id.Username)
	if err != nil {
		s.writeMemberError(w, err)
		return
	}
	middleware.WriteOK(w, "ok", newMemberView(m))
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	all, err := s.members.ListMembers(r.Context())
	if err != nil {
		s.writeMemberError(w, err)
		return
	}
	views := make([]memberView, 0, len(all))
	for _, m := range all {
		views = append(views, newMemberView(m))
	}
	middleware.WriteOK(w, "ok", views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		middleware.WriteJSON(w, http.StatusServiceUnavailable, middleware.RsData[*middleware.Empty]{
			Code: "503-1",
			Msg:  "token registry unavailable",
		})
		return
	}
	middleware.WriteOK(w, "ok", middleware.Empty{})
}

// writeMemberError hides store failures behind the generic 500 and maps a
// vanished member to 401.
func (s *Server) writeMemberError(w http.ResponseWriter, err error) {
	if errors.Is(err, tripAuth.ErrMemberNotFound) {
		middleware.WriteError(w, tripAuth.ErrUnauthenticated)
		return
	}
	s.logger.WithError(err).Error("member store failure")
	middleware.WriteError(w, err)
}
