package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juridia/caseflow/internal/cases"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

func handleCaseCreate(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body cases.CreateCaseInput
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		view, err := co.CreateCase(r.Context(), *rctx, body)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, view)
	}
}

func handleCaseList(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		filters := store.CaseFilters{
			Status:      r.URL.Query().Get("status"),
			BenefitType: r.URL.Query().Get("benefit_type"),
		}
		list, err := co.ListCases(r.Context(), *rctx, filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":  list,
			"count": len(list),
		})
	}
}

func handleCaseGet(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		view, err := co.GetCase(r.Context(), *rctx, chi.URLParam(r, "caseID"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleCaseUpdate(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body cases.UpdateCaseInput
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		view, err := co.UpdateCase(r.Context(), *rctx, chi.URLParam(r, "caseID"), body)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleCaseDelete(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		if err := co.DeleteCase(r.Context(), *rctx, chi.URLParam(r, "caseID")); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleProgressReport(co *cases.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		report, err := co.ProgressReport(r.Context(), *rctx)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}
