package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/service"
)

// AssignmentController exposes the sprint assignment lifecycle.
type AssignmentController struct {
	Assignments *service.AssignmentService
}

func (c *AssignmentController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID int                     `json:"account_id"`
		SprintID  int                     `json:"sprint_id"`
		Options   model.AssignmentOptions `json:"options"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	assignment, err := c.Assignments.CreateAssignment(r.Context(), body.AccountID, body.SprintID, body.Options)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, assignment, "Assignment created")
}

func (c *AssignmentController) Bulk(w http.ResponseWriter, r *http.Request) {
	var req model.BulkAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Assignments) == 0 {
		respondError(w, appErrors.NewValidationError("assignments array is required"))
		return
	}

	result := c.Assignments.BulkAssign(r.Context(), req)
	respond(w, http.StatusOK, result, "")
}

func (c *AssignmentController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid assignment id"))
		return
	}

	assignment, err := c.Assignments.GetAssignment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, assignment, "")
}

func (c *AssignmentController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := model.AssignmentFilters{Status: q.Get("status")}
	filters.AccountID, _ = strconv.Atoi(q.Get("account_id"))
	filters.SprintID, _ = strconv.Atoi(q.Get("sprint_id"))

	assignments, err := c.Assignments.ListAssignments(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, assignments, "")
}

// lifecycle runs one status change endpoint.
func (c *AssignmentController) lifecycle(w http.ResponseWriter, r *http.Request, fn func(int) (*model.SprintAssignment, error), message string) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, appErrors.NewValidationError("invalid assignment id"))
		return
	}

	assignment, err := fn(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, assignment, message)
}

func (c *AssignmentController) Activate(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (*model.SprintAssignment, error) {
		return c.Assignments.ActivateAssignment(r.Context(), id)
	}, "Assignment activated")
}

func (c *AssignmentController) Pause(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (*model.SprintAssignment, error) {
		return c.Assignments.PauseAssignment(r.Context(), id)
	}, "Assignment paused")
}

func (c *AssignmentController) Resume(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (*model.SprintAssignment, error) {
		return c.Assignments.ResumeAssignment(r.Context(), id)
	}, "Assignment resumed")
}

func (c *AssignmentController) Complete(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (*model.SprintAssignment, error) {
		return c.Assignments.CompleteAssignment(r.Context(), id)
	}, "Assignment completed")
}

func (c *AssignmentController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (*model.SprintAssignment, error) {
		return c.Assignments.CancelAssignment(r.Context(), id)
	}, "Assignment cancelled")
}
