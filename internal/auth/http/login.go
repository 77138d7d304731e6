package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP performs the hybrid signature+password login.
//
//	@Summary		Hybrid login
//	@Description	Authenticates with both factors: a device signature over a live challenge
//	@Description	and the enrolled password. Any failure returns the same generic 401 so the
//	@Description	response never reveals which factor was wrong.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.LoginRequest	true	"username, password, challenge, signature, public key"
//	@Success		200		{object}	authapi.TokenResponse	"access and refresh tokens"
//	@Failure		400		{object}	authapi.ErrorResponse	"malformed request"
//	@Failure		401		{object}	authapi.ErrorResponse	"authentication failed"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" || req.Challenge == "" || req.Signature == "" || req.PublicKey == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	user, pair, err := h.AuthService.HybridLogin(ctx, req.Username, req.Password, req.Challenge, req.Signature, req.DeviceID, req.PublicKey)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authapi.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("hybrid login failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(user.ID, pair))
}
