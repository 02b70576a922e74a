package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartRequest(t *testing.T, files map[string]string, order ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		fw, err := mw.CreateFormFile(UploadField, name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseUploadFiles(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"Marzo_2024.csv":   "PARRUCCHIERE\n",
		"Aprile_2024.xlsx": "zip",
	}, "Marzo_2024.csv", "Aprile_2024.xlsx")

	files, fail := ParseUploadFiles(httptest.NewRecorder(), req, 1<<20)
	require.Nil(t, fail)
	require.Len(t, files, 2)
	assert.Equal(t, "Marzo_2024.csv", files[0].Name)
	assert.Equal(t, "Aprile_2024.xlsx", files[1].Name)

	rc, err := files[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "PARRUCCHIERE\n", string(body))
}

func TestParseUploadFiles_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		req   *http.Request
		limit int64
		code  int
		text  string
	}{
		{
			name: "unsupported extension",
			req:  multipartRequest(t, map[string]string{"Marzo_2024.xls": "x"}, "Marzo_2024.xls"),
			code: http.StatusUnprocessableEntity,
			text: "Formato non supportato: Marzo_2024.xls",
		},
		{
			name: "no files",
			req:  multipartRequest(t, nil),
			code: http.StatusUnprocessableEntity,
			text: "Seleziona almeno un file",
		},
		{
			name: "not multipart",
			req:  httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("a=b")),
			code: http.StatusBadRequest,
		},
		{
			name:  "too large",
			req:   multipartRequest(t, map[string]string{"Marzo_2024.csv": string(bytes.Repeat([]byte("x"), 4096))}, "Marzo_2024.csv"),
			limit: 512,
			code:  http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := tt.limit
			if limit == 0 {
				limit = 1 << 20
			}
			_, fail := ParseUploadFiles(httptest.NewRecorder(), tt.req, limit)
			require.NotNil(t, fail)
			w := httptest.NewRecorder()
			fail.Write(w)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.text)
		})
	}
}

func TestParseMonthParam(t *testing.T) {
	periods := []string{"Gennaio_2024", "Febbraio_2024"}

	m, ok := ParseMonthParam(url.Values{"mese": {"Febbraio_2024"}}, periods)
	assert.True(t, ok)
	assert.Equal(t, "Febbraio_2024", m)

	for _, v := range []string{"", "overall", "Marzo_2024"} {
		_, ok := ParseMonthParam(url.Values{"mese": {v}}, periods)
		assert.False(t, ok, v)
	}
}
