package chart

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"os"
	"strings"
	"testing"

	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/logger"
	"data-agent/internal/infrastructure/sandbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gochart "github.com/wcharczuk/go-chart/v2"
)

func newSession(t *testing.T) *sandbox.Session {
	t.Helper()
	ds, err := entity.NewDataset("sales.csv",
		[]string{"month", "revenue", "region"},
		[][]string{
			{"1", "120.5", "north"},
			{"2", "98", "south"},
			{"3", "143.25", "north"},
			{"4", "160", "east"},
		})
	require.NoError(t, err)
	s, err := sandbox.NewSession(ds, sandbox.Config{}, logger.NewNop())
	require.NoError(t, err)
	return s
}

type failingStore struct{}

func (failingStore) Save(context.Context, []byte) (entity.ChartRef, error) {
	return entity.ChartRef{}, errors.New("disk full")
}

func TestRenderer_FileStore(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(newSession(t), NewFileStore(dir), Config{}, logger.NewNop())

	obs, err := r.Render(context.Background(), `plt.plot(df["month"].tolist(), df["revenue"].tolist(), label="revenue")
plt.title("Revenue")`)
	require.NoError(t, err)
	require.False(t, obs.Failed(), obs.Text)
	require.NotNil(t, obs.Chart)

	assert.Equal(t, entity.ChartFile, obs.Chart.Kind)
	assert.Contains(t, obs.Text, obs.Chart.Handle())
	_, statErr := os.Stat(obs.Chart.Path)
	assert.NoError(t, statErr)
	assert.Equal(t, 0, sandbox.OpenFigures())
}

func TestRenderer_EmbeddedStore(t *testing.T) {
	r := NewRenderer(newSession(t), EmbeddedStore{}, Config{Width: 400, Height: 300}, logger.NewNop())

	obs, err := r.Render(context.Background(), `counts = df.value_counts("region")
plt.bar(list(counts.keys()), list(counts.values()))`)
	require.NoError(t, err)
	require.False(t, obs.Failed(), obs.Text)
	require.NotNil(t, obs.Chart)

	assert.Equal(t, entity.ChartEmbedded, obs.Chart.Kind)
	img, err := png.Decode(bytes.NewReader(obs.Chart.Data))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.True(t, strings.HasPrefix(obs.Chart.Path, "chart_"))
}

func TestRenderer_UniqueFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(newSession(t), NewFileStore(dir), Config{}, logger.NewNop())

	code := `plt.scatter(df["month"].tolist(), df["revenue"].tolist())`
	first, err := r.Render(context.Background(), code)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), code)
	require.NoError(t, err)

	require.NotNil(t, first.Chart)
	require.NotNil(t, second.Chart)
	assert.NotEqual(t, first.Chart.Path, second.Chart.Path)
}

func TestRenderer_Failures(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"syntax", "plt.plot(", "SyntaxError"},
		{"unknown column", `plt.plot([1, 2], df["nope"].tolist())`, "Error"},
		{"nothing drawn", `plt.title("empty")`, "ChartError"},
		{"mixed kinds", `plt.bar(["a"], [1])
plt.plot([1, 2], [3, 4])`, "ChartError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(newSession(t), EmbeddedStore{}, Config{}, logger.NewNop())
			obs, err := r.Render(context.Background(), tt.code)
			require.NoError(t, err)
			assert.True(t, obs.Failed())
			assert.Nil(t, obs.Chart)
			assert.Contains(t, obs.Text, tt.want)
			assert.True(t, errors.Is(obs.Err, entity.ErrToolExecution))
			assert.Equal(t, 0, sandbox.OpenFigures())
		})
	}
}

func TestRenderer_StoreFailure(t *testing.T) {
	r := NewRenderer(newSession(t), failingStore{}, Config{}, logger.NewNop())

	_, err := r.Render(context.Background(), `plt.pie(["a", "b"], [1, 2])`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrToolInfrastructure))
	assert.Equal(t, 0, sandbox.OpenFigures())
}

func TestRenderer_Histogram(t *testing.T) {
	r := NewRenderer(newSession(t), EmbeddedStore{}, Config{}, logger.NewNop())

	obs, err := r.Render(context.Background(), `plt.hist(df["revenue"].tolist(), bins=3)`)
	require.NoError(t, err)
	require.False(t, obs.Failed(), obs.Text)
}

func TestHistogram(t *testing.T) {
	labels, counts, err := histogram([]float64{1, 2, 2, 3, 10}, 3)
	require.NoError(t, err)
	require.Len(t, labels, 3)
	assert.Equal(t, []float64{4, 0, 1}, counts)

	labels, counts, err = histogram([]float64{5, 5}, 4)
	require.NoError(t, err)
	assert.Len(t, labels, 1)
	assert.Equal(t, []float64{2}, counts)

	_, _, err = histogram([]float64{1, math.Inf(1)}, 3)
	assert.Error(t, err)
	_, _, err = histogram([]float64{1, math.NaN(), 3}, 3)
	assert.Error(t, err)
}

func TestBarChart_RejectsNonFinite(t *testing.T) {
	var buf bytes.Buffer
	err := barChart("", "", []string{"a", "b"}, []float64{1, math.NaN()}, 400, 300).Render(gochart.PNG, &buf)
	assert.Error(t, err)
}

func TestRenderer_NonFiniteData(t *testing.T) {
	ds, err := entity.NewDataset("readings.csv",
		[]string{"v"},
		[][]string{{"1"}, {"2"}, {"inf"}})
	require.NoError(t, err)

	tests := []struct {
		name string
		code string
	}{
		{"hist over inf column", `plt.hist(df["v"])`},
		{"hist over inf list", `plt.hist(df["v"].tolist())`},
		{"hist with nan", `plt.hist([1.0, float("nan"), 3.0])`},
		{"bar with nan", `plt.bar(["a", "b"], [1.0, float("nan")])`},
		{"pie with nan", `plt.pie(["a", "b"], [1.0, float("nan")])`},
		{"plot with inf", `plt.plot([1, 2], [1.0, float("inf")])`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := sandbox.NewSession(ds, sandbox.Config{}, logger.NewNop())
			require.NoError(t, err)
			r := NewRenderer(session, EmbeddedStore{}, Config{}, logger.NewNop())

			obs, err := r.Render(context.Background(), tt.code)
			require.NoError(t, err)
			assert.True(t, obs.Failed())
			assert.Nil(t, obs.Chart)
			assert.True(t, errors.Is(obs.Err, entity.ErrToolExecution))
			assert.Equal(t, 0, sandbox.OpenFigures())
		})
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(entity.ChartFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = NewStore(entity.ChartEmbedded, "")
	require.NoError(t, err)
	assert.IsType(t, EmbeddedStore{}, s)

	_, err = NewStore("svg", "")
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
}
