package http

import (
	"net/http"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
)

type workflowHandler struct {
	uc       interfaces.WorkflowUseCase
	coverage interfaces.FileStore
}

// evaluateRequest carries the step results reported by runners
type evaluateRequest struct {
	Reports []model.CellReport `json:"reports"`
}

func (h *workflowHandler) jobs(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("workflow"))
		return
	}
	jobs, err := h.uc.Jobs(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, jobs)
}

func (h *workflowHandler) trigger(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("workflow"))
		return
	}
	var ev model.TriggerEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		handleError(w, r, err)
		return
	}

	plan, err := h.uc.Trigger(r.Context(), ev)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, plan)
}

func (h *workflowHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("workflow"))
		return
	}
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	outcome, err := h.uc.Evaluate(r.Context(), req.Reports, h.coverage)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, outcome)
}

func (h *workflowHandler) checkCoverage(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("workflow"))
		return
	}
	if h.coverage == nil {
		handleError(w, r, notConfigured("coverage directory"))
		return
	}
	reports, err := h.uc.CheckCoverage(r.Context(), h.coverage)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, reports)
}
