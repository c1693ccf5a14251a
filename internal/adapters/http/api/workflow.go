package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/xsrledger/internal/domain/types"
)

// workflowRequest optionally narrows a run to named sources.
type workflowRequest struct {
	Sources []string `json:"sources"`
}

// WorkflowHandler triggers ingestion runs and reports their state.
type WorkflowHandler struct {
	deps Dependencies
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(deps Dependencies) *WorkflowHandler {
	return &WorkflowHandler{deps: deps}
}

// HandleSubmit handles GET and POST /api/xia-workflow. GET takes repeated
// source query parameters, POST a JSON body; naming nothing runs every
// configured source.
func (h *WorkflowHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_workflow"
	var req workflowRequest
	if r.Method == http.MethodGet {
		req.Sources = r.URL.Query()["source"]
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeServiceError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	job, err := h.deps.Submit(r.Context(), req.Sources...)
	if err != nil {
		writeServiceError(w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, types.TaskAccepted{TaskID: job.ID})
}

// HandleStatus handles GET /api/status/{task_id}.
func (h *WorkflowHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.workflow_status"
	job, err := h.deps.Job(chi.URLParam(r, "task_id"))
	if err != nil {
		writeServiceError(w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.NewTaskStatus(job))
}
