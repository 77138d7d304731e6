package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type VerifyHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP performs the signature-only login.
//
//	@Summary		Verify a device signature
//	@Description	Authenticates a device by verifying its signature over a previously issued
//	@Description	challenge. The challenge is consumed on success and cannot be replayed.
//	@Description	All verification failures return the same generic 401.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.VerifyRequest	true	"device id, challenge, signature, public key"
//	@Success		200		{object}	authapi.TokenResponse	"access and refresh tokens"
//	@Failure		400		{object}	authapi.ErrorResponse	"malformed request"
//	@Failure		401		{object}	authapi.ErrorResponse	"authentication failed"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/verify [post].
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || req.Challenge == "" || req.Signature == "" || req.PublicKey == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	user, pair, err := h.AuthService.VerifyDevice(ctx, req.DeviceID, req.Challenge, req.Signature, req.PublicKey)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authapi.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("device verification failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(user.ID, pair))
}

func tokenResponse(userID string, pair domain.TokenPair) authapi.TokenResponse {
	return authapi.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		UserID:       userID,
	}
}
