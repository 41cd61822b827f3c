package http

import (
	"net/http"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
)

type changelogHandler struct {
	uc interfaces.ChangelogUseCase
}

func (h *changelogHandler) entries(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("changelog"))
		return
	}
	entries, err := h.uc.Entries(r.Context(), r.URL.Query().Get("category"), r.URL.Query().Get("version"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	writeJSON(w, r, entries)
}

func (h *changelogHandler) summary(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("changelog"))
		return
	}
	summary, err := h.uc.Summary(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

func (h *changelogHandler) validate(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("changelog"))
		return
	}
	issues, err := h.uc.Validate(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if issues == nil {
		issues = []model.ChangelogIssue{}
	}
	writeJSON(w, r, map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
