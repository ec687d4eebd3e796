package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/adapter/chunker"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/metrics"
	"ragqa/internal/adapter/retriever"
	"ragqa/internal/adapter/store"
	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

// plainDocuments treats uploads as single-page text; bodies starting with
// "%corrupt" fail to parse.
type plainDocuments struct {
	chunker *chunker.WindowChunker
}

func (d plainDocuments) ChunkDocument(_ context.Context, source string, r io.ReaderAt, size int64) ([]domain.Chunk, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, []byte("%corrupt")) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentParse, source)
	}
	return d.chunker.Chunk(source, []domain.Page{{Number: 1, Text: string(data)}})
}

type stubLLM struct {
	err error
}

func (l stubLLM) Generate(context.Context, string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return "Forty kilowatt hours.", nil
}

func (stubLLM) ModelName() string { return "stub" }

// outageEmbedder fails any batch containing the word "outage".
type outageEmbedder struct{ port.Embedder }

func (e outageEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, "outage") {
			return nil, errors.New("embedding service unavailable")
		}
	}
	return e.Embedder.Embed(ctx, texts)
}

func newTestServer(t *testing.T, llm stubLLM, opts Options) (*httptest.Server, *metrics.Recorder) {
	t.Helper()
	return newTestServerWith(t, llm, embedding.NewHashEmbedder(32), opts)
}

func newTestServerWith(t *testing.T, llm stubLLM, embedder port.Embedder, opts Options) (*httptest.Server, *metrics.Recorder) {
	t.Helper()

	wc, err := chunker.NewWindowChunker(chunker.UnitChar, 200, 20, nil)
	require.NoError(t, err)

	logger := logging.Discard()
	index := store.NewMemorySessionIndex(32)
	recorder := metrics.NewRecorder()

	deps := Deps{
		Sessions: usecase.NewSessionUseCase(index, nil, logger),
		Indexer:  usecase.NewIndexUseCase(plainDocuments{chunker: wc}, embedder, index, nil, recorder, logger),
		Asker: usecase.NewAskUseCase(
			usecase.NewRetrieveUseCase(retriever.NewSemanticRetriever(embedder, index, 2, logger), 5),
			usecase.NewAnswerUseCase(llm, 300, 3, logger),
			recorder,
			logger,
		),
		Metrics: recorder,
	}

	srv := httptest.NewServer(NewServer(deps, opts, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, recorder
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func upload(t *testing.T, srv *httptest.Server, sessionID string, files map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(files)) {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func ask(t *testing.T, srv *httptest.Server, sessionID, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/question", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadAndAsk(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	id := createSession(t, srv)

	resp := upload(t, srv, id, map[string]string{
		"battery.pdf": "The battery capacity is forty kilowatt hours.",
		"broken.pdf":  "%corrupt",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var up uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	assert.Equal(t, 1, up.DocumentsIndexed)
	assert.Equal(t, 1, up.TotalChunks)
	require.Len(t, up.Failures, 1)
	assert.Equal(t, "broken.pdf", up.Failures[0].Source)

	resp = ask(t, srv, id, `{"question": "What is the battery capacity?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var answer domain.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Equal(t, "Forty kilowatt hours.", answer.Text)
	require.Len(t, answer.References, 1)
	assert.Equal(t, "battery.pdf", answer.References[0].Source)
	assert.Equal(t, 1, answer.References[0].Page)
}

func TestUpload_AllValidHasEmptyFailures(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	id := createSession(t, srv)

	resp := upload(t, srv, id, map[string]string{"a.pdf": "alpha"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["failures"]))
	assert.JSONEq(t, `"Documents processed successfully"`, string(raw["message"]))
}

func TestUpload_EmbeddingFailureKeepsPartialResult(t *testing.T) {
	srv, _ := newTestServerWith(t, stubLLM{}, outageEmbedder{embedding.NewHashEmbedder(32)}, Options{})
	id := createSession(t, srv)

	resp := upload(t, srv, id, map[string]string{
		"a-battery.pdf": "The battery capacity is forty kilowatt hours.",
		"b-broken.pdf":  "%corrupt",
		"c-grid.pdf":    "Grid outage procedures.",
		"d-solar.pdf":   "Solar panels are never reached.",
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body uploadErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "c-grid.pdf")
	assert.Equal(t, 1, body.DocumentsIndexed)
	assert.Equal(t, 1, body.TotalChunks)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "b-broken.pdf", body.Failures[0].Source)

	resp = ask(t, srv, id, `{"question":"battery capacity"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answer domain.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	require.Len(t, answer.References, 1)
	assert.Equal(t, "a-battery.pdf", answer.References[0].Source)
}

func TestUpload_NoFiles(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	resp := upload(t, srv, "s1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpload_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{MaxUploadBytes: 512})
	resp := upload(t, srv, "s1", map[string]string{"big.pdf": strings.Repeat("x", 4096)})
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, resp.StatusCode)
}

func TestQuestion_EmptySession(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	id := createSession(t, srv)

	resp := ask(t, srv, id, `{"question": "Anything?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["references"]))
}

func TestQuestion_Errors(t *testing.T) {
	tests := []struct {
		name string
		llm  stubLLM
		body string
		code int
	}{
		{"missing question", stubLLM{}, `{}`, http.StatusBadRequest},
		{"blank question", stubLLM{}, `{"question": "   "}`, http.StatusBadRequest},
		{"invalid json", stubLLM{}, `{"question":`, http.StatusBadRequest},
		{"top_k above max", stubLLM{}, `{"question": "q", "top_k": 101}`, http.StatusBadRequest},
		{"huge top_k", stubLLM{}, `{"question": "q", "top_k": 4611686018427387904}`, http.StatusBadRequest},
		{"synthesis failure", stubLLM{err: fmt.Errorf("%w: down", domain.ErrSynthesis)}, `{"question": "q"}`, http.StatusBadGateway},
		{"unexpected failure", stubLLM{err: errors.New("boom")}, `{"question": "q"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.llm, Options{})
			resp := ask(t, srv, "s1", tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	id := createSession(t, srv)

	resp := upload(t, srv, id, map[string]string{"a.pdf": "alpha beta gamma"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/sessions/"+id+"/reset", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var answer domain.Answer
	resp = ask(t, srv, id, `{"question": "alpha"}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Empty(t, answer.References)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	srv, _ := newTestServer(t, stubLLM{}, Options{})
	id := createSession(t, srv)
	upload(t, srv, id, map[string]string{"a.pdf": "alpha"})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ragqa_documents_indexed_total 1")
	assert.Contains(t, string(body), `route="POST /sessions/{id}/documents"`)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sessions", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", domain.ErrInvalidInput)))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("x: %w", domain.ErrEmbedding)))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.ErrSynthesis))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("x: %w", domain.ErrIndex)))
}
