package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salone/internal/core"
	"salone/internal/ingest"
	"salone/internal/log"
	"salone/internal/services"
	"salone/internal/session"
)

const batchTimeout = 2 * time.Minute

// currentSession returns the caller's session, or nil.
func (s *Server) currentSession(r *http.Request) *session.Session {
	sess, err := s.sessions.FromRequest(r)
	if err != nil {
		return nil
	}
	return sess
}

func (s *Server) newPage(r *http.Request, sess *session.Session, title, active string) pageData {
	p := pageData{
		Title:     title,
		Active:    active,
		Nav:       navItems,
		CanImport: s.svc.CanImport(),
	}
	if sess != nil {
		p.HasData = true
		p.Source = sess.Source
		p.Periods = periodOptions(sess.Periods(), "")
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Template execution failed", err, log.OpRender,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
		InternalServerError("Errore di visualizzazione.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// requireSession redirects to the upload page when no analysis is loaded.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.currentSession(r)
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	data := s.newPage(r, sess, "Panoramica", "/")
	if sess != nil {
		data.Body = newOverview(sess.Result.Overall)
	}
	s.render(w, r, http.StatusOK, "index_page", data)
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	data := s.newPage(r, sess, "Analisi Globale", "/analisi/globale")
	data.Body = detailView{
		Charts: []chartRef{
			{"Andamento Fatturato nel Tempo", chartURL(sess, "", "fatturato")},
			{"Performance Operatori", chartURL(sess, "", "operatori")},
			{"Popolarità Servizi", chartURL(sess, "", "servizi")},
		},
		Operators: operatorRows(sess.Result.Overall),
		Services:  serviceRows(sess.Result.Overall),
	}
	s.render(w, r, http.StatusOK, "global_page", data)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	data := s.newPage(r, sess, "Analisi Mensile", "/analisi/mensile")
	if key, ok := ParseMonthParam(r.URL.Query(), sess.Periods()); ok {
		p := sess.Result.Periods[key]
		data.Periods = periodOptions(sess.Periods(), key)
		data.Body = monthView{
			Key:          key,
			Label:        core.PeriodLabel(key),
			TotalRevenue: formatCHF(p.TotalRevenue),
			Charts: []chartRef{
				{"Top Servizi", chartURL(sess, key, "servizi")},
				{"Performance Operatori", chartURL(sess, key, "operatori")},
				{"Valore Ora per Operatore", chartURL(sess, key, "valore-ora")},
				{"Numero Medio Servizi per Operatore", chartURL(sess, key, "servizi-operatore")},
			},
			Operators: operatorRows(p),
			Services:  serviceRows(p),
		}
	}
	s.render(w, r, http.StatusOK, "monthly_page", data)
}

func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	data := s.newPage(r, sess, "Dettagli Operatori", "/operatori")
	data.Body = detailView{
		Charts: []chartRef{
			{"Valore Ora per Operatore", chartURL(sess, "", "valore-ora")},
			{"Numero Medio Servizi per Operatore", chartURL(sess, "", "servizi-operatore")},
			{"Trend Fatturato", chartURL(sess, "", "trend-fatturato")},
			{"Trend Valore Ora", chartURL(sess, "", "trend-valore-ora")},
			{"Trend Valore Medio Servizio", chartURL(sess, "", "trend-valore-medio")},
		},
		Operators: operatorRows(sess.Result.Overall),
	}
	s.render(w, r, http.StatusOK, "operators_page", data)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	data := s.newPage(r, sess, "Dettagli Servizi", "/servizi")
	data.Body = detailView{
		Charts: []chartRef{
			{"Popolarità Servizi", chartURL(sess, "", "popolarita")},
			{"Redditività Servizi", chartURL(sess, "", "redditivita")},
			{"Trend Popolarità Servizi", chartURL(sess, "", "trend-servizi")},
		},
		Services: serviceRows(sess.Result.Overall),
	}
	s.render(w, r, http.StatusOK, "services_page", data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	files, fail := ParseUploadFiles(w, r, s.maxUpload)
	if fail != nil {
		s.rejectBatch(r, services.SourceUpload)
		fail.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), batchTimeout)
	defer cancel()

	sess, err := s.svc.Upload(ctx, files)
	if err != nil {
		log.FromContext(ctx).LogError(ctx, "Upload failed", err, log.OpUpload,
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)))
		batchFailed(w, r, http.StatusUnprocessableEntity, uploadErrorMessage(err))
		return
	}
	s.finishBatch(w, r, sess)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.svc.CanImport() {
		NotFoundError("Nessuna sorgente dati configurata.").Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), batchTimeout)
	defer cancel()

	sess, err := s.svc.Import(ctx)
	if err != nil {
		log.FromContext(ctx).LogError(ctx, "Import failed", err, log.OpImport, nil)
		msg := "Importazione non riuscita."
		if errors.Is(err, services.ErrNoPeriods) {
			msg = "Nessun periodo trovato nella sorgente dati."
		}
		batchFailed(w, r, http.StatusBadGateway, msg)
		return
	}
	s.finishBatch(w, r, sess)
}

// handleReset forgets the caller's session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if sess := s.currentSession(r); sess != nil {
		s.sessions.Delete(sess.ID)
		s.charts.DeletePrefix(ChartKeyPrefix(sess.ID))
		s.metrics.SessionsActive(s.sessions.Len())
	}
	session.ClearCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// finishBatch binds the new session and sends the browser to the overview.
func (s *Server) finishBatch(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if old := s.currentSession(r); old != nil && old.ID != sess.ID {
		s.sessions.Delete(old.ID)
		s.charts.DeletePrefix(ChartKeyPrefix(old.ID))
		s.metrics.SessionsActive(s.sessions.Len())
	}
	s.sessions.SetCookie(w, r, sess)
	if isHTMX(r) {
		NewHTMXResponse().
			TriggerAnalysisReady(sess.ID, sess.Periods()).
			TriggerSuccessNotification(fmt.Sprintf("Analisi completata: %d mesi elaborati.", len(sess.Result.Periods))).
			Redirect("/").
			Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// batchFailed answers with an error fragment; htmx callers also get an
// error notification.
func batchFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	resp := ErrorResponse(status, msg)
	if isHTMX(r) {
		resp.TriggerErrorNotification(msg)
	}
	resp.Write(w)
}

func (s *Server) rejectBatch(r *http.Request, source string) {
	s.metrics.Batch(source, false)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Batch rejected",
		log.FieldOperation, log.OpUpload, "source", source)
}

// uploadErrorMessage turns a decode failure into the message shown to the user.
func uploadErrorMessage(err error) string {
	var fe *ingest.FileError
	switch {
	case errors.Is(err, services.ErrNoFiles):
		return "Seleziona almeno un file Excel."
	case errors.Is(err, context.DeadlineExceeded):
		return "Elaborazione dei file troppo lunga, riprova con meno file."
	case errors.As(err, &fe) && errors.Is(err, core.ErrDuplicatePeriod):
		return fmt.Sprintf("Più file si riferiscono allo stesso periodo (%s).", core.PeriodKey(fe.Name))
	case errors.As(err, &fe):
		return fmt.Sprintf("Impossibile leggere il file %s.", fe.Name)
	}
	return "Impossibile elaborare i file caricati."
}
