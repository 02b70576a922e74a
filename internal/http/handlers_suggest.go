package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salone/internal/log"
	"salone/internal/suggest"
)

const (
	suggestTimeout       = 90 * time.Second
	suggestErrorPrefix   = "Mi dispiace, si è verificato un errore nell'analisi dei dati. "
	suggestNoDataMessage = "Per favore, carica i dati e assicurati che l'analisi sia completata prima di generare i suggerimenti."
)

func (s *Server) handleSuggestionsPage(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	data := s.newPage(r, sess, "Suggerimenti", "/suggerimenti")
	view := suggestionsView{}
	if sess != nil {
		view.Text = sess.Suggestions()
	}
	data.Body = view
	s.render(w, r, http.StatusOK, "suggestions_page", data)
}

// handleSuggest answers the htmx button with the "suggestions" fragment.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	if sess == nil {
		s.renderSuggestions(w, r, NewHTMXResponse(), suggestionsView{Error: suggestNoDataMessage})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), suggestTimeout)
	defer cancel()

	text, err := s.svc.Suggest(ctx, sess)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Suggestions unavailable",
			log.FieldSession, sess.ID, log.FieldError, err)
		s.renderSuggestions(w, r, NewHTMXResponse(), suggestionsView{Error: suggestErrorPrefix + suggestionCause(err)})
		return
	}
	s.renderSuggestions(w, r, NewHTMXResponse().TriggerSuggestionsReady(), suggestionsView{Text: text})
}

func (s *Server) renderSuggestions(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, view suggestionsView) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "suggestions", view); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", "suggestions")
		InternalServerError("Errore di visualizzazione.").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

// suggestionCause is the short explanation appended to the error prefix.
func suggestionCause(err error) string {
	var se *suggest.StatusError
	switch {
	case errors.Is(err, suggest.ErrMissingAPIKey):
		return "API key non trovata"
	case errors.As(err, &se):
		return fmt.Sprintf("Errore HTTP! stato: %d", se.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "Il servizio non ha risposto in tempo."
	case errors.Is(err, suggest.ErrUnexpectedResponse):
		return "Risposta del servizio non valida."
	}
	return "Servizio non raggiungibile."
}
