package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type PasswordHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP enrolls the optional password second factor.
//
//	@Summary		Set username and password
//	@Description	Enrolls a username/password pair for the authenticated user, enabling hybrid
//	@Description	login. The caller must own the stated device id and the username must be free.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.PasswordRequest		true	"device id, username, password"
//	@Success		200		{object}	authapi.PasswordResponse	"stored username"
//	@Failure		400		{object}	authapi.ErrorResponse	"weak password or bad username"
//	@Failure		401		{object}	authapi.ErrorResponse	"invalid or missing access token"
//	@Failure		404		{object}	authapi.ErrorResponse	"device not owned by caller"
//	@Failure		409		{object}	authapi.ErrorResponse	"username already taken"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/password [post].
func (h *PasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	var req authapi.PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || req.Username == "" || req.Password == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	username, err := h.AuthService.SetPassword(ctx, userID, req.DeviceID, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, store.ErrNotFound):
		authapi.ErrNotFound.WriteError(w)
		return
	case errors.Is(err, service.ErrBadUsername):
		authapi.ErrInvalidUsername.WriteError(w)
		return
	case errors.Is(err, service.ErrWeakPassword):
		authapi.ErrWeakPassword.WriteError(w)
		return
	case errors.Is(err, service.ErrUsernameTaken):
		authapi.ErrUsernameConflict.WriteError(w)
		return
	default:
		log.Error("failed to set credentials", "user_id", userID, "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authapi.PasswordResponse{Username: username})
}
