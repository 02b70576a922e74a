// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// multipart uploads and period selection.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"salone/internal/core"
	"salone/internal/ingest"
)

// UploadField is the multipart field carrying the spreadsheet files.
const UploadField = "files"

// multipartMemory is kept in memory before spilling to temp files.
const multipartMemory = 8 << 20

var acceptedExtensions = map[string]bool{".xlsx": true, ".csv": true}

// ParseUploadFiles reads the multipart upload and returns the files in
// submission order. One file with an unsupported extension rejects the
// whole upload.
func ParseUploadFiles(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]ingest.File, *HTMXResponseBuilder) {
	tooLarge := ErrorResponse(http.StatusRequestEntityTooLarge, "I file superano la dimensione massima consentita.")
	if maxBytes > 0 {
		if r.ContentLength > maxBytes {
			return nil, tooLarge
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge
		}
		return nil, BadRequestError("Formato richiesta non valido")
	}

	headers := r.MultipartForm.File[UploadField]
	if len(headers) == 0 {
		return nil, UnprocessableEntityError("Seleziona almeno un file Excel.")
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(sanitizeInput(fh.Filename))
		if !acceptedExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil, UnprocessableEntityError(fmt.Sprintf("Formato non supportato: %s (sono accettati file .xlsx e .csv).", name))
		}
		files = append(files, ingest.File{Name: name, Open: openPart(fh)})
	}
	return files, nil
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

// ParseMonthParam returns the "mese" query value when it names one of the
// available periods.
func ParseMonthParam(query url.Values, periods []string) (string, bool) {
	month := sanitizeInput(query.Get("mese"))
	if month == "" || month == core.OverallKey {
		return "", false
	}
	for _, p := range periods {
		if p == month {
			return month, true
		}
	}
	return "", false
}
