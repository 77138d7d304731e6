package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/slogx"
)

type AuditHandler struct {
	AuditService *service.AuditService
}

// HandleLogs lists decrypted audit events.
//
//	@Summary		List audit logs
//	@Description	Returns decrypted audit events, newest first. Requires the 'audit:read'
//	@Description	scope. Fields whose ciphertext fails authentication come back with ok=false.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Param			action		query		string	false	"filter by action"
//	@Param			platform	query		string	false	"filter by platform"
//	@Param			success		query		bool	false	"filter by outcome"
//	@Param			since		query		string	false	"RFC3339 lower bound"
//	@Param			until		query		string	false	"RFC3339 upper bound"
//	@Param			limit		query		int		false	"max rows, default 100"
//	@Success		200			{object}	authapi.AuditLogsResponse	"decrypted events"
//	@Failure		401			{object}	authapi.ErrorResponse		"invalid or missing access token"
//	@Failure		403			{object}	authapi.ErrorResponse		"missing audit:read scope"
//	@Failure		500			{object}	authapi.ErrorResponse		"internal server error"
//	@Router			/v1/audit/logs [get].
func (h *AuditHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}

	events, err := h.AuditService.QueryLogs(ctx, filter)
	if err != nil {
		log.Error("audit log query failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	resp := authapi.AuditLogsResponse{Events: make([]authapi.AuditLogEntry, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, authapi.AuditLogEntry{
			ID:         e.ID,
			Action:     string(e.Action),
			UserID:     authapi.AuditLogField(e.UserID),
			Username:   authapi.AuditLogField(e.Username),
			Metadata:   authapi.AuditLogField(e.Metadata),
			DeviceHash: e.DeviceHash,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Platform:   e.Platform,
			Success:    e.Success,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt,
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleStats returns per-action aggregates.
//
//	@Summary		Audit statistics
//	@Description	Aggregates event counts by action and platform over the window. Computed
//	@Description	from plaintext columns only; requires the 'audit:read' scope.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Param			days	query		int	false	"window in days, default 7"
//	@Success		200		{object}	authapi.AuditStatsResponse	"per-action counts"
//	@Failure		401		{object}	authapi.ErrorResponse		"invalid or missing access token"
//	@Failure		403		{object}	authapi.ErrorResponse		"missing audit:read scope"
//	@Failure		500		{object}	authapi.ErrorResponse		"internal server error"
//	@Router			/v1/audit/stats [get].
func (h *AuditHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			authapi.ErrInvalidRequest.WriteError(w)
			return
		}
		days = n
	}

	stats, err := h.AuditService.Stats(ctx, days)
	if err != nil {
		log.Error("audit stats query failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	resp := authapi.AuditStatsResponse{
		WindowDays: days,
		Stats:      make([]authapi.AuditStatsEntry, 0, len(stats)),
	}
	for _, s := range stats {
		resp.Stats = append(resp.Stats, authapi.AuditStatsEntry{
			Action:   string(s.Action),
			Platform: s.Platform,
			Count:    s.Count,
			Failures: s.Failures,
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func parseAuditFilter(w http.ResponseWriter, r *http.Request) (domain.AuditFilter, bool) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		Action:   domain.AuditAction(q.Get("action")),
		Platform: q.Get("platform"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			authapi.ErrInvalidRequest.WriteError(w)
			return domain.AuditFilter{}, false
		}
		filter.Success = &b
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			authapi.ErrInvalidRequest.WriteError(w)
			return domain.AuditFilter{}, false
		}
		filter.Since = ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			authapi.ErrInvalidRequest.WriteError(w)
			return domain.AuditFilter{}, false
		}
		filter.Until = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			authapi.ErrInvalidRequest.WriteError(w)
			return domain.AuditFilter{}, false
		}
		filter.Limit = n
	}

	return filter, true
}
