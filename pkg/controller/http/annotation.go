package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/interfaces"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type annotationHandler struct {
	uc interfaces.AnnotationUseCase
}

func (h *annotationHandler) datasets(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("annotation database"))
		return
	}
	writeJSON(w, r, h.uc.Datasets())
}

func (h *annotationHandler) find(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("annotation database"))
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	records, err := h.uc.FindRecords(r.Context(), r.URL.Query().Get("dataset"), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	writeJSON(w, r, records)
}

func (h *annotationHandler) count(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("annotation database"))
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	n, err := h.uc.Count(r.Context(), r.URL.Query().Get("dataset"), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]int{"count": n})
}

func (h *annotationHandler) describe(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		handleError(w, r, notConfigured("annotation database"))
		return
	}
	q, err := parseDescribeFields(r.URL.Query().Get("fields"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := h.uc.Describe(r.Context(), r.URL.Query().Get("dataset"), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, result)
}

// parseQuery builds a Query from URL parameters
func parseQuery(values url.Values) (model.Query, error) {
	q := model.Query{
		SeqName:    values.Get("seq_name"),
		BioType:    values.Get("bio_type"),
		Identifier: values.Get("identifier"),
		Strand:     values.Get("strand"),
	}

	for _, p := range []struct {
		key string
		dst **int
	}{
		{"start", &q.Start},
		{"end", &q.End},
	} {
		v := values.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, goerr.New("invalid coordinate",
				goerr.V(p.key, v),
				goerr.T(types.ErrTagInvalidArgument))
		}
		*p.dst = &n
	}

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// parseDescribeFields selects describe columns from a comma separated list.
// An empty list selects every column.
func parseDescribeFields(fields string) (model.DescribeQuery, error) {
	if strings.TrimSpace(fields) == "" {
		return model.DescribeQuery{SeqName: true, BioType: true, Identifier: true}, nil
	}

	var q model.DescribeQuery
	for _, f := range strings.Split(fields, ",") {
		switch strings.TrimSpace(f) {
		case "seq_name":
			q.SeqName = true
		case "bio_type":
			q.BioType = true
		case "identifier":
			q.Identifier = true
		default:
			return q, goerr.New("unknown describe field",
				goerr.V("field", f),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}
	return q, nil
}
