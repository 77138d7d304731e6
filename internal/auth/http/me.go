package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type MeHandler struct {
	Store store.Store
}

// ServeHTTP returns the authenticated user.
//
//	@Summary		Get current user
//	@Description	Returns information about the user behind the presented access token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authapi.UserResponse	"user information"
//	@Failure		401	{object}	authapi.ErrorResponse	"invalid or missing access token"
//	@Failure		404	{object}	authapi.ErrorResponse	"user no longer exists"
//	@Failure		500	{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authapi.ErrNotFound.WriteError(w)
			return
		}
		log.Warn("failed to load user", "user_id", userID, "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	resp := authapi.UserResponse{
		UserID:      user.ID,
		DeviceID:    user.DeviceID,
		Platform:    user.Platform,
		DisplayName: user.DisplayName,
		HasPassword: user.HasPassword(),
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
	if user.Username != nil {
		resp.Username = *user.Username
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
