package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/jwtx"
	"github.com/picketapp/picket/pkg/slogx"
)

type LogoutHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP deletes the caller's session.
//
//	@Summary		Logout
//	@Description	Deletes the session behind the presented access token, invalidating its
//	@Description	refresh token. Idempotent: logging out twice is still 204.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		204		"session deleted"
//	@Failure		401		{object}	authapi.ErrorResponse	"invalid or missing access token"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := ctx.Value(httpx.CtxKeyClaims).(jwtx.Claims)
	if !ok || claims.Subject == "" || claims.SID == "" {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.AuthService.Logout(ctx, claims.Subject, claims.SID); err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			authapi.ErrInvalidToken.WriteError(w)
			return
		}
		log.Error("logout failed", "user_id", claims.Subject, "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
