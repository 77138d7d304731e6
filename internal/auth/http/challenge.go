package http

import (
	"net/http"

	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type ChallengeHandler struct {
	ChallengeService *service.ChallengeService
}

// ServeHTTP issues a fresh signing challenge.
//
//	@Summary		Request a signing challenge
//	@Description	Returns a single-use challenge value the device must sign. Expires after five minutes.
//	@Description	When a device_id is supplied, any earlier challenge for that device is replaced.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authapi.ChallengeRequest	false	"optional device hint"
//	@Success		200		{object}	authapi.ChallengeResponse	"challenge value and expiry"
//	@Failure		400		{object}	authapi.ErrorResponse		"malformed request"
//	@Failure		500		{object}	authapi.ErrorResponse		"internal server error"
//	@Router			/v1/auth/challenge [post].
func (h *ChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.ChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.ChallengeService.Issue(ctx, req.DeviceID)
	if err != nil {
		log.Error("failed to issue challenge", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authapi.ChallengeResponse{
		Challenge: c.Value,
		ExpiresAt: c.ExpiresAt,
	})
}
