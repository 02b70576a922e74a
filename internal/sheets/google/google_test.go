package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"salone/internal/core"
)

func fakeSheets(t *testing.T, titles []string, tabs map[string][][]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/values:batchGet"):
			var ranges []map[string]any
			for _, rng := range r.URL.Query()["ranges"] {
				title := strings.ReplaceAll(strings.Trim(rng, "'"), "''", "'")
				ranges = append(ranges, map[string]any{"range": rng, "values": tabs[title]})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id", "valueRanges": ranges})
		case strings.HasSuffix(r.URL.Path, "/v4/spreadsheets/sheet-id"):
			var sheets []map[string]any
			for _, title := range titles {
				sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sheet-id")
}

func TestReadPeriods(t *testing.T) {
	c := fakeSheets(t,
		[]string{"Riepilogo", "Gennaio_2024", "Febbraio_2024 definitivo"},
		map[string][][]any{
			"Gennaio_2024": {
				{"PARRUCCHIERE", "SERVIZIO", "NUMERO", "ORE", "FATTURATO"},
				{"Anna", "Taglio", 2, 1.5, 50},
				{},
			},
			"Febbraio_2024 definitivo": {
				{"PARRUCCHIERE"},
				{"Luca", "Piega", 1, 0.5, 1250000},
			},
		})

	ds, err := c.ReadPeriods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Gennaio_2024", "Febbraio_2024"}, ds.Keys())
	assert.Equal(t, []core.RawRow{
		{"PARRUCCHIERE", "SERVIZIO", "NUMERO", "ORE", "FATTURATO"},
		{"Anna", "Taglio", "2", "1.5", "50"},
	}, ds["Gennaio_2024"])
	assert.Equal(t, "1250000", ds["Febbraio_2024"][1].Cell(core.ColRevenue))
}

func TestReadPeriods_DuplicateTabs(t *testing.T) {
	c := fakeSheets(t,
		[]string{"Marzo_2024", "Marzo_2024 bis"},
		map[string][][]any{"Marzo_2024": {{"a"}}, "Marzo_2024 bis": {{"b"}}})

	_, err := c.ReadPeriods(context.Background())
	assert.ErrorIs(t, err, core.ErrDuplicatePeriod)
}

func TestReadPeriods_NoPeriodTabs(t *testing.T) {
	c := fakeSheets(t, []string{"Foglio1"}, nil)
	ds, err := c.ReadPeriods(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestReadPeriods_NilService(t *testing.T) {
	_, err := (&Client{}).ReadPeriods(context.Background())
	assert.Error(t, err)
}

func TestNewFromOptions_Validation(t *testing.T) {
	_, err := NewFromOptions(context.Background(), Options{})
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = NewFromOptions(context.Background(), Options{SpreadsheetID: "x"})
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = NewFromOptions(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"})
	assert.ErrorContains(t, err, "read service account file")
}

func TestQuoteRange(t *testing.T) {
	assert.Equal(t, "'Marzo_2024'", quoteRange("Marzo_2024"))
	assert.Equal(t, "'L''Oreal_2024'", quoteRange("L'Oreal_2024"))
}

func TestToStrings(t *testing.T) {
	assert.Equal(t, core.RawRow{"a", "", "3", "0.25", "true"}, toStrings([]any{"a", nil, 3.0, 0.25, true}))
}
