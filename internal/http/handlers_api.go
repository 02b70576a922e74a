package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"salone/internal/analysis"
	"salone/internal/core"
	"salone/internal/log"
	"salone/internal/suggest"
)

const analyzeErrorMessage = "Si è verificato un errore nell'analisi dei dati."

type apiError struct {
	Error string `json:"error"`
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, apiError{Error: msg})
}

// handleAPIAggregate runs the engine over a posted dataset.
func (s *Server) handleAPIAggregate(w http.ResponseWriter, r *http.Request) {
	var ds core.PeriodDataset
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, s.maxUpload), &ds); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeAPIError(w, r, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeAPIError(w, r, http.StatusBadRequest, "invalid dataset: "+err.Error())
		return
	}
	if err := ds.Validate(); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "invalid dataset: "+err.Error())
		return
	}

	start := time.Now()
	result := analysis.Aggregate(ds)
	s.metrics.Aggregated(time.Since(start))
	log.FromContext(r.Context()).InfoContext(r.Context(), "Dataset aggregated",
		log.FieldOperation, log.OpAggregate,
		log.FieldPeriods, len(result.Periods),
		log.FieldRevenue, result.Overall.TotalRevenue)

	render.JSON(w, r, result)
}

// handleAPIAnalyze forwards {monthlyData, analysis} to the model and
// answers with the suggestion text as a JSON string.
func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	var req suggest.Request
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, s.maxUpload), &req); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid analyze payload", log.FieldError, err)
		writeAPIError(w, r, http.StatusInternalServerError, analyzeErrorMessage)
		return
	}
	text, err := s.svc.SuggestRaw(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, http.StatusInternalServerError, analyzeErrorMessage)
		return
	}
	render.JSON(w, r, text)
}
