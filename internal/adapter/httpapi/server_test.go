package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"data-agent/internal/adapter/tool"
	"data-agent/internal/application/service"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/chart"
	"data-agent/internal/infrastructure/history"
	"data-agent/internal/infrastructure/llm/langchain"
	"data-agent/internal/infrastructure/logger"
	"data-agent/internal/infrastructure/prompts"
	"data-agent/internal/infrastructure/sandbox"
	"data-agent/internal/usecase/chat"
	"data-agent/internal/usecase/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, responses ...string) (*httptest.Server, string) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	ds, err := entity.NewDataset("sales.csv", []string{"region", "units"},
		[][]string{{"north", "10"}, {"south", "4"}, {"north", "7"}})
	require.NoError(t, err)

	session, err := sandbox.NewSession(ds, sandbox.Config{}, log)
	require.NoError(t, err)

	chartDir := t.TempDir()
	renderer := chart.NewRenderer(session, chart.NewFileStore(chartDir), chart.Config{}, log)

	registry := service.NewToolRegistry()
	require.NoError(t, registry.Register(tool.NewPythonExecutorTool(session, log)))
	require.NoError(t, registry.Register(tool.NewChartGeneratorTool(renderer, log)))

	llm, err := langchain.NewAdapter(ctx, langchain.Config{Provider: langchain.ProviderFake, Responses: responses})
	require.NoError(t, err)

	gen, err := prompts.NewDefaultGenerator()
	require.NoError(t, err)

	store, err := history.Open(ctx, history.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := executor.New(llm, registry, gen, session, nil, log, executor.Config{})
	svc := chat.NewService(runner, store, session, log, "")

	srv := httptest.NewServer(NewServer(svc, store, chartDir, log).Routes())
	t.Cleanup(srv.Close)
	return srv, chartDir
}

// decodedTurn mirrors turnResponse with plain fields, since observation
// errors are serialized as strings.
type decodedTurn struct {
	FinalText     string            `json:"final_text"`
	Clean         string            `json:"clean"`
	StoppedReason entity.StopReason `json:"stopped_reason"`
	Steps         []struct {
		ActionName  string `json:"action_name"`
		Observation struct {
			Text  string `json:"text"`
			Error string `json:"error"`
			Chart *struct {
				Kind string `json:"kind"`
				Path string `json:"path"`
			} `json:"chart"`
		} `json:"observation"`
	} `json:"steps"`
	Segments []json.RawMessage `json:"segments"`
	Error    string            `json:"error"`
}

func postTurn(t *testing.T, srv *httptest.Server, session, question string) (int, decodedTurn) {
	t.Helper()
	body, _ := json.Marshal(turnRequest{Question: question})
	resp, err := http.Post(srv.URL+"/api/sessions/"+session+"/turns", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out decodedTurn
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestServer_TurnWithTool(t *testing.T) {
	srv, _ := newTestServer(t,
		" I should count rows.\nAction: python_code_executor\nAction Input: print(df.shape[0])",
		" I now know.\nFinal Answer: There are 3 rows.",
	)

	status, out := postTurn(t, srv, "s1", "How many rows?")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "There are 3 rows.", out.FinalText)
	assert.Equal(t, entity.StopAnswered, out.StoppedReason)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "3", out.Steps[0].Observation.Text)
	require.Len(t, out.Segments, 1)
	assert.Empty(t, out.Error)

	resp, err := http.Get(srv.URL + "/api/sessions/s1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	var msgs []entity.ChatMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "There are 3 rows.", msgs[1].Content)
}

func TestServer_TurnWithChart(t *testing.T) {
	srv, _ := newTestServer(t,
		"Action: chart_generator\nAction Input: counts = df.value_counts(\"region\")\nplt.bar(list(counts.keys()), list(counts.values()))",
		"Final Answer: Units by region: [CHART:placeholder]",
	)

	status, out := postTurn(t, srv, "s1", "Plot rows per region")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out.Steps, 1)
	require.NotNil(t, out.Steps[0].Observation.Chart)

	path := out.Steps[0].Observation.Chart.Path
	resp, err := http.Get(srv.URL + "/charts/" + path[strings.LastIndex(path, "/")+1:])
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestServer_EmptyQuestion(t *testing.T) {
	srv, _ := newTestServer(t, "Final Answer: x")

	status, _ := postTurn(t, srv, "s1", "  ")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_ChartPathIsConfined(t *testing.T) {
	srv, _ := newTestServer(t, "Final Answer: x")

	resp, err := http.Get(srv.URL + "/charts/secrets.txt")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UploadReplacesDataset(t *testing.T) {
	srv, _ := newTestServer(t,
		"Action: python_code_executor\nAction Input: print(df.shape)",
		"Final Answer: done",
	)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "new.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("a,b\n1,2\n3,4\n5,6\n7,8\n"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/dataset", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, out := postTurn(t, srv, "s2", "shape?")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "(4, 2)", out.Steps[0].Observation.Text)
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, "Final Answer: x")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
