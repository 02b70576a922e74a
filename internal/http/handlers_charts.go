package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/plot"

	"salone/internal/charts"
	"salone/internal/log"
)

const chartCacheControl = "private, max-age=3600"

func (s *Server) handleOverallChart(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	if sess == nil {
		NotFoundError("Nessuna analisi disponibile.").Write(w)
		return
	}
	name := chi.URLParam(r, "name")
	s.serveChart(w, r, ChartKeyPrefix(sess.ID)+"all/"+name, func() (*plot.Plot, error) {
		return charts.Overall(name, sess.Result)
	})
}

func (s *Server) handlePeriodChart(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	if sess == nil {
		NotFoundError("Nessuna analisi disponibile.").Write(w)
		return
	}
	period := chi.URLParam(r, "period")
	p, ok := sess.Result.Period(period)
	if !ok {
		NotFoundError("Mese non trovato.").Write(w)
		return
	}
	name := chi.URLParam(r, "name")
	s.serveChart(w, r, ChartKeyPrefix(sess.ID)+period+"/"+name, func() (*plot.Plot, error) {
		return charts.Period(name, p)
	})
}

// serveChart renders the plot once per key and serves the cached PNG after.
func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, key string, build func() (*plot.Plot, error)) {
	png, ok := s.charts.Get(key)
	if !ok {
		p, err := build()
		if errors.Is(err, charts.ErrUnknownChart) {
			NotFoundError("Grafico non trovato.").Write(w)
			return
		}
		var buf bytes.Buffer
		if err == nil {
			err = charts.WritePNG(&buf, p)
		}
		if err != nil {
			log.FromContext(r.Context()).LogError(r.Context(), "Chart rendering failed", err, log.OpRender,
				log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
			InternalServerError("Impossibile generare il grafico.").Write(w)
			return
		}
		png = buf.Bytes()
		s.charts.Set(key, png)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", chartCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
