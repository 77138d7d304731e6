package http

import (
	"errors"
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type RegisterHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP registers a new device and returns its first token pair.
//
//	@Summary		Register a device
//	@Description	Creates a user bound to the device id and its public key, and issues tokens.
//	@Description	The device id is the uniqueness anchor: re-registering it returns 409.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.RegisterRequest	true	"device id, public key, platform"
//	@Success		200		{object}	authapi.TokenResponse	"access and refresh tokens"
//	@Failure		400		{object}	authapi.ErrorResponse	"bad public key or platform"
//	@Failure		409		{object}	authapi.ErrorResponse	"device already registered"
//	@Failure		500		{object}	authapi.ErrorResponse	"internal server error"
//	@Router			/v1/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || req.PublicKey == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	user, pair, err := h.AuthService.RegisterDevice(ctx, req.DeviceID, req.PublicKey, req.Platform, req.DisplayName)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrDeviceExists):
		authapi.ErrDeviceConflict.WriteError(w)
		return
	case errors.Is(err, service.ErrBadPublicKey), errors.Is(err, service.ErrBadPlatform):
		authapi.ErrInvalidRequest.WriteError(w)
		return
	default:
		log.Error("device registration failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(user.ID, pair))
}
