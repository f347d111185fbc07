package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/service"
)

// EmergencyController exposes emergency content injection.
type EmergencyController struct {
	Emergency *service.EmergencyService
}

func (c *EmergencyController) Inject(w http.ResponseWriter, r *http.Request) {
	var req model.EmergencyInjectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := c.Emergency.Inject(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result, result.Summary)
}

func (c *EmergencyController) Preview(w http.ResponseWriter, r *http.Request) {
	var req model.EmergencyInjectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	preview, err := c.Emergency.Preview(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, preview, "")
}

func (c *EmergencyController) InjectImmediate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmergencyContent model.EmergencyContent `json:"emergency_content"`
		TargetAccountIDs []int                  `json:"target_account_ids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := c.Emergency.InjectImmediate(r.Context(), body.EmergencyContent, body.TargetAccountIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result, result.Summary)
}

func (c *EmergencyController) BatchInject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []model.EmergencyInjectionRequest `json:"requests"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Requests) == 0 {
		respondError(w, appErrors.NewValidationError("requests array is required"))
		return
	}

	outcomes := c.Emergency.BatchInject(r.Context(), body.Requests)
	respond(w, http.StatusOK, outcomes, "")
}

func (c *EmergencyController) Validate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmergencyContent model.EmergencyContent `json:"emergency_content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	validation := c.Emergency.ValidatePayload(body.EmergencyContent)
	respond(w, http.StatusOK, validation, "")
}

func (c *EmergencyController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Emergency.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, stats, "")
}

func (c *EmergencyController) ResumeSprints(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid account id"))
		return
	}

	adjustments, err := c.Emergency.ResumeSprints(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, adjustments, "Sprints resumed")
}

func (c *EmergencyController) Cleanup(w http.ResponseWriter, r *http.Request) {
	var accountID *int
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, appErrors.NewValidationError("invalid account_id"))
			return
		}
		accountID = &id
	}

	deleted, err := c.Emergency.CleanupExpired(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted_count": deleted}, "Expired emergency content removed")
}
