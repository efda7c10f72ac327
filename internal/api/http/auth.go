package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/bizense/bizense-manager/internal/apisrv/auth"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type ctxKey int

const userIdCtxKey ctxKey = iota

// authenticator rejects requests without a valid bearer token and puts
// the user id from the subject claim on the context.
func (s *Server) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			render.Render(w, r, ErrUnauthorized(fmt.Errorf("no valid token provided")))
			return
		}
		userId, err := uuid.Parse(token.Subject())
		if err != nil {
			render.Render(w, r, ErrUnauthorized(fmt.Errorf("malformed token subject")))
			return
		}
		ctx := context.WithValue(r.Context(), userIdCtxKey, userId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIdFromCtx(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIdCtxKey).(uuid.UUID)
	return id
}

type loginRequest struct {
	Email    string `json:"email" valid:"required,email"`
	Password string `json:"password" valid:"required"`
}

type authTokenResponse struct {
	AuthToken string `json:"authToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	token, err := s.authSrv.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		render.Render(w, r, ErrUnauthorized(err))
		return
	}
	render.JSON(w, r, authTokenResponse{AuthToken: token})
}

type createUserRequest struct {
	MasterPassword string `json:"masterPassword" valid:"required"`
	Email          string `json:"email" valid:"required,email"`
	Password       string `json:"password" valid:"required"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	token, err := s.authSrv.Create(r.Context(), req.MasterPassword, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			render.Render(w, r, ErrUnauthorized(err))
			return
		}
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.JSON(w, r, authTokenResponse{AuthToken: token})
}

type deleteUserRequest struct {
	MasterPassword string `json:"masterPassword" valid:"required"`
	Email          string `json:"email" valid:"required,email"`
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err := s.authSrv.Delete(r.Context(), req.MasterPassword, req.Email); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			render.Render(w, r, ErrUnauthorized(err))
			return
		}
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.JSON(w, r, map[string]string{"message": "user deleted"})
}
