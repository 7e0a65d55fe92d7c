package api

import (
	"net/http"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

type userResponse struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"full_name,omitempty"`
	ProfilePicture       string    `json:"profile_picture,omitempty"`
	AuthProvider         string    `json:"auth_provider"`
	IsAdmin              bool      `json:"is_admin"`
	IsVerified           bool      `json:"is_verified"`
	IsSubscribed         bool      `json:"is_subscribed"`
	FreeCreditsRemaining int       `json:"free_credits_remaining"`
	CreatedAt            time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:                   u.ID,
		Email:                u.Email,
		FullName:             u.FullName,
		ProfilePicture:       u.ProfilePicture,
		AuthProvider:         string(u.AuthProvider),
		IsAdmin:              u.IsAdmin,
		IsVerified:           u.IsVerified,
		IsSubscribed:         u.IsSubscribed,
		FreeCreditsRemaining: u.FreeCreditsRemaining,
		CreatedAt:            u.CreatedAt,
	}
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.auth.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.auth.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserResponse(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, toUserResponse(userFrom(r)))
}

type updateMeRequest struct {
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, err := s.auth.UpdateProfile(r.Context(), userFrom(r).ID, req.FullName, req.ProfilePicture)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}
