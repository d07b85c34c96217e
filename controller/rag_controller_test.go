package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/rentalqa/models"
	"github/itish2003/rentalqa/services"
)

type stubRAG struct {
	answer    func(question string, history models.History) (*models.AnswerResult, error)
	stats     *models.StatsResponse
	statsErr  error
	questions []string
}

func (s *stubRAG) Answer(_ context.Context, question string, history models.History) (*models.AnswerResult, error) {
	s.questions = append(s.questions, question)
	return s.answer(question, history)
}

func (s *stubRAG) Stats(context.Context) (*models.StatsResponse, error) {
	return s.stats, s.statsErr
}

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestChat_ReturnsAggregatedSources(t *testing.T) {
	var gotHistory models.History
	svc := &stubRAG{answer: func(q string, h models.History) (*models.AnswerResult, error) {
		gotHistory = h
		return &models.AnswerResult{
			Text: "Within 14 days.",
			SourceDocuments: []models.RetrievedDocument{
				{PageContent: "one", Metadata: models.Metadata{"source": "a.pdf"}},
				{PageContent: "two", Metadata: models.Metadata{"source": "b.pdf"}},
				{PageContent: "three", Metadata: models.Metadata{"source": "a.pdf"}},
			},
		}, nil
	}}
	router := NewRouter(NewRAGController(svc))

	for _, path := range []string{"/api/chat", "/api/v1/chat"} {
		w := doRequest(t, router, http.MethodPost, path,
			`{"question":"When is the bond refunded?","history":[["What is a bond?","A deposit."]]}`)

		require.Equal(t, http.StatusOK, w.Code, path)
		resp := decode[models.AnswerResponse](t, w)
		assert.Equal(t, "Within 14 days.", resp.Text)
		require.Len(t, resp.SourceDocuments, 2)
		assert.Equal(t, "one\n\n\nthree", resp.SourceDocuments[0].PageContent)
		assert.Equal(t, "a.pdf", resp.SourceDocuments[0].Metadata.Source())
		assert.Equal(t, "two", resp.SourceDocuments[1].PageContent)

		require.Equal(t, 1, gotHistory.Len())
		assert.Equal(t, "What is a bond?", gotHistory.Turns()[0].Question)
	}
}

func TestChat_EmptySourcesSerialiseAsArray(t *testing.T) {
	svc := &stubRAG{answer: func(string, models.History) (*models.AnswerResult, error) {
		return &models.AnswerResult{Text: services.FallbackAnswer, SourceDocuments: []models.RetrievedDocument{}}, nil
	}}
	router := NewRouter(NewRAGController(svc))

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"question":"Who won the cricket?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"text":%q,"sourceDocuments":[]}`, services.FallbackAnswer), w.Body.String())
}

func TestChat_EmptyQuestion(t *testing.T) {
	svc := &stubRAG{answer: func(string, models.History) (*models.AnswerResult, error) {
		return nil, services.ErrEmptyQuestion
	}}
	router := NewRouter(NewRAGController(svc))

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgNoQuestion, decode[models.ErrorResponse](t, w).Error)
}

func TestChat_InvalidBody(t *testing.T) {
	svc := &stubRAG{}
	router := NewRouter(NewRAGController(svc))

	for _, body := range []string{`not json`, `{"question":"q","history":[["only one"]]}`} {
		w := doRequest(t, router, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.NotEmpty(t, decode[models.ErrorResponse](t, w).Error)
	}
	assert.Empty(t, svc.questions)
}

func TestChat_InternalErrorIsGeneric(t *testing.T) {
	svc := &stubRAG{answer: func(string, models.History) (*models.AnswerResult, error) {
		return nil, &services.StageError{Stage: "retrieve", Err: errors.New("dial tcp 10.0.0.1:8000: connection refused")}
	}}
	router := NewRouter(NewRAGController(svc))

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgGeneric, decode[models.ErrorResponse](t, w).Error)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestChat_PanicIsRecovered(t *testing.T) {
	svc := &stubRAG{answer: func(string, models.History) (*models.AnswerResult, error) {
		panic("unexpected")
	}}
	router := NewRouter(NewRAGController(svc))

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgGeneric, decode[models.ErrorResponse](t, w).Error)
}

func TestStats(t *testing.T) {
	svc := &stubRAG{stats: &models.StatsResponse{Namespace: "nsw", Chunks: 42}}
	router := NewRouter(NewRAGController(svc))

	w := doRequest(t, router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatsResponse{Namespace: "nsw", Chunks: 42}, decode[models.StatsResponse](t, w))

	svc.stats, svc.statsErr = nil, errors.New("index down")
	w = doRequest(t, router, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndCORS(t *testing.T) {
	router := NewRouter(NewRAGController(&stubRAG{}))

	w := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(t, router, http.MethodOptions, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
