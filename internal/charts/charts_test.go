package charts

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salone/internal/analysis"
	"salone/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleResult() core.AnalysisResult {
	h := core.RawRow{"PARRUCCHIERE"}
	return analysis.Aggregate(core.PeriodDataset{
		"Gennaio_2024": {h, {"Anna", "Taglio", "2", "1", "50"}, {"", "Piega", "1", "0.5", "20"}, {"Luca", "Taglio", "1", "0", "40"}},
		"Febbraio_2024": {h, {"Anna", "Colore", "1", "2", "120"}},
	})
}

func TestOverallViewsRender(t *testing.T) {
	res := sampleResult()
	for _, name := range OverallNames {
		t.Run(name, func(t *testing.T) {
			p, err := Overall(name, res)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, WritePNG(&buf, p))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
	_, err := Overall("nope", res)
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestPeriodViewsRender(t *testing.T) {
	res := sampleResult()
	for _, name := range PeriodNames {
		p, err := Period(name, res.Periods["Gennaio_2024"])
		require.NoError(t, err, name)
		var buf bytes.Buffer
		require.NoError(t, WritePNG(&buf, p), name)
	}
	_, err := Period("fatturato", res.Periods["Gennaio_2024"])
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestEmptyChartsRender(t *testing.T) {
	p, err := Bar("Vuoto", "CHF", nil, Teal)
	require.NoError(t, err)
	require.NoError(t, WritePNG(&bytes.Buffer{}, p))

	p, err = Overall("trend-fatturato", core.AnalysisResult{})
	require.NoError(t, err)
	require.NoError(t, WritePNG(&bytes.Buffer{}, p))
}

func TestBarToleratesNonFinite(t *testing.T) {
	_, err := Bar("Valore Ora", "CHF/h", core.Ranking{{Name: "A", Value: math.Inf(1)}, {Name: "B", Value: math.NaN()}, {Name: "C", Value: 10}}, Orange)
	assert.NoError(t, err)
}

func TestTrendMissingKeysAreZero(t *testing.T) {
	res := sampleResult()
	series := trend(res, res.Keys(), []string{"Luca"}, func(p core.PeriodAnalysis) core.Ranking { return p.SortedOperators })
	require.Len(t, series, 1)
	assert.Equal(t, []float64{40, 0}, series[0].Values)
}

func TestAlignTo(t *testing.T) {
	got := alignTo([]string{"B", "A", "C"}, core.Ranking{{Name: "A", Value: 1}, {Name: "B", Value: 2}})
	assert.Equal(t, core.Ranking{{Name: "B", Value: 2}, {Name: "A", Value: 1}, {Name: "C", Value: 0}}, got)
}

func TestHue(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 217, G: 38, B: 38, A: 255}, Hue(0, 3))
	assert.Equal(t, color.RGBA{R: 38, G: 217, B: 38, A: 255}, Hue(1, 3))
	assert.Equal(t, color.RGBA{R: 38, G: 38, B: 217, A: 255}, Hue(2, 3))
}
