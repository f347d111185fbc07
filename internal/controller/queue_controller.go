package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/service"
)

// QueueController exposes the content queue's read and control surface.
type QueueController struct {
	Control *service.QueueControlService
	Query   *service.QueueQueryService
}

func (c *QueueController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := model.QueueFilters{
		Status:      q.Get("status"),
		ContentType: q.Get("content_type"),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
	}
	filters.AccountID, _ = strconv.Atoi(q.Get("account_id"))
	filters.SprintAssignmentID, _ = strconv.Atoi(q.Get("sprint_assignment_id"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))

	if q.Get("emergency_content") != "" {
		emergency := q.Get("emergency_content") == "true"
		filters.EmergencyContent = &emergency
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.ScheduledFrom = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.ScheduledTo = &t
		}
	}

	page, err := c.Query.List(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, page, "")
}

func (c *QueueController) AccountQueue(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid account id"))
		return
	}
	includeCompleted := r.URL.Query().Get("include_completed") == "true"

	items, err := c.Query.AccountQueue(r.Context(), accountID, includeCompleted)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items, "")
}

func (c *QueueController) Upcoming(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 24
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := c.Query.Upcoming(r.Context(), time.Duration(hours)*time.Hour, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items, "")
}

func (c *QueueController) Overdue(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := c.Query.Overdue(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items, "")
}

func (c *QueueController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Query.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, stats, "")
}

func (c *QueueController) Health(w http.ResponseWriter, r *http.Request) {
	report, err := c.Query.Health(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report, "")
}

func (c *QueueController) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.Query.Summary(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, summary, "")
}

func (c *QueueController) Reschedule(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid item id"))
		return
	}

	var body struct {
		ScheduledTime time.Time `json:"scheduled_time"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := c.Control.Reschedule(r.Context(), itemID, body.ScheduledTime); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, nil, "Item rescheduled")
}

func (c *QueueController) Retry(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid item id"))
		return
	}

	if err := c.Control.Retry(r.Context(), itemID); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, nil, "Item queued for retry")
}

func (c *QueueController) Remove(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid item id"))
		return
	}

	if err := c.Control.Remove(r.Context(), itemID); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, nil, "Item removed from queue")
}

func (c *QueueController) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Updates []model.QueueUpdate `json:"updates"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := c.Control.BulkUpdate(r.Context(), body.Updates)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result, "")
}

func (c *QueueController) CancelAccountQueue(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid account id"))
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional; a missing reason falls back to the default.
	_ = decodeOptionalBody(r, &body)

	cancelled, err := c.Control.CancelAccountQueue(r.Context(), accountID, body.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"cancelled_count": cancelled}, "Account queue cancelled")
}

func (c *QueueController) Cleanup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DaysOld int `json:"days_old"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	deleted, err := c.Control.Cleanup(r.Context(), body.DaysOld)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted_count": deleted}, "Cleanup completed")
}

func (c *QueueController) ValidateModification(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid item id"))
		return
	}

	canModify, reason, err := c.Control.ValidateModification(r.Context(), itemID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"can_modify": canModify, "reason": reason}, "")
}
