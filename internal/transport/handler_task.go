package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juridia/caseflow/internal/cases"
	"github.com/juridia/caseflow/model"
)

func handleTaskList(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		workflowOnly := r.URL.Query().Get("workflow_only") == "true"
		tasks, err := co.ListTasks(r.Context(), *rctx, chi.URLParam(r, "caseID"), workflowOnly)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":  tasks,
			"count": len(tasks),
		})
	}
}

func handleTaskCreate(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body cases.CreateTaskInput
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		task, err := co.CreateManualTask(r.Context(), *rctx, chi.URLParam(r, "caseID"), body)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, task)
	}
}

func handleTaskStatus(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if body.Status == "" {
			WriteValidationError(w, []model.FieldError{
				{Field: "status", Code: "required", Message: "status is required"},
			})
			return
		}

		task, warning, err := co.UpdateTaskStatus(r.Context(), *rctx, chi.URLParam(r, "taskID"), body.Status)
		if err != nil {
			WriteError(w, err)
			return
		}

		resp := map[string]any{"data": task}
		if warning != "" {
			resp["warning"] = warning
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
