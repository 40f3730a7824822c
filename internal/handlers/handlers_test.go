package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeChatService validates the request the way the pipeline does and then
// answers with a canned response
type fakeChatService struct {
	resp      *models.ChatResponse
	got       *models.ChatRequest
	quizCalls int
}

func (f *fakeChatService) Reply(_ context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	return f.answer(req, false)
}

func (f *fakeChatService) ReplyQuiz(_ context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	f.quizCalls++
	return f.answer(req, true)
}

func (f *fakeChatService) answer(req *models.ChatRequest, forceQuiz bool) (*models.ChatResponse, error) {
	f.got = req
	if _, err := models.ResolveMode(req, forceQuiz); err != nil {
		return nil, err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &models.ChatResponse{Reply: "باهي"}, nil
}

func newTestRouter(t *testing.T, cfg *config.Config, svc *fakeChatService) *gin.Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	router, err := NewRouter(cfg, svc, observability.NewNopLogger())
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	return router
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.ChatResponse {
	t.Helper()
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
