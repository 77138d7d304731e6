package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type RefreshHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP rotates an access/refresh token pair.
//
//	@Summary		Refresh tokens
//	@Description	Exchanges a valid refresh token for a new pair. Rotation is atomic: the
//	@Description	presented token is invalidated in the same write that stores the new one,
//	@Description	so a replayed or raced refresh gets 401.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.RefreshRequest	true	"refresh token"
//	@Success		200		{object}	authapi.TokenResponse	"rotated access and refresh tokens"
//	@Failure		400		{object}	authapi.ErrorResponse	"malformed request"
//	@Failure		401		{object}	authapi.ErrorResponse	"invalid, expired or already rotated token"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.AuthService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authapi.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("token refresh failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse("", pair))
}
