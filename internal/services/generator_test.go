package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestGenerator(t *testing.T, handler http.HandlerFunc) *OpenAICompatibleGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Generation.Model = "test-model"
	cfg.Generation.APIKey = "sk-test"
	g, err := NewOpenAICompatibleGenerator(cfg, &config.ProviderConfig{Code: "local", Kind: "openai", URL: server.URL + "/v1/"}, observability.NewNopLogger())
	require.NoError(t, err)
	return g
}

func TestOpenAICompatibleGenerator_Generate(t *testing.T) {
	var got map[string]interface{}
	var gotPath, gotAuth string
	g := newOpenAITestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<think>plan</think>\nأهلا بيك"}}]}`))
	})

	reply, err := g.Generate(context.Background(), &models.GenerationRequest{
		Segments: []models.Segment{
			{Role: models.RoleSystem, Text: "directive"},
			{Role: models.RoleModel, Text: "previous"},
			{Role: models.RoleUser, Text: "what is this?", Inline: &models.InlineData{MIMEType: "image/png", Data: []byte("png")}},
		},
		Temperature:     0.7,
		MaxOutputTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "أهلا بيك", reply)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, 0.7, got["temperature"])
	assert.Equal(t, float64(256), got["max_tokens"])

	messages := got["messages"].([]interface{})
	require.Len(t, messages, 3)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", messages[1].(map[string]interface{})["role"])

	parts := messages[2].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/png;base64,cG5n", image["url"])
}

func TestOpenAICompatibleGenerator_Failures(t *testing.T) {
	req := &models.GenerationRequest{Segments: []models.Segment{{Role: models.RoleUser, Text: "hi"}}}

	t.Run("non-2xx is a request failure", func(t *testing.T) {
		g := newOpenAITestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})
		_, err := g.Generate(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, contextutils.ErrAIRequestFailed))
	})

	t.Run("unreadable envelope is an empty answer", func(t *testing.T) {
		g := newOpenAITestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		})
		reply, err := g.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, reply)
	})

	t.Run("api error in envelope", func(t *testing.T) {
		g := newOpenAITestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"rate_limit"}}`))
		})
		_, err := g.Generate(context.Background(), req)
		assert.True(t, errors.Is(err, contextutils.ErrAIRequestFailed))
	})

	t.Run("empty request", func(t *testing.T) {
		g := newOpenAITestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no call expected")
		})
		_, err := g.Generate(context.Background(), &models.GenerationRequest{})
		assert.True(t, errors.Is(err, contextutils.ErrAIConfigInvalid))
	})
}

func TestNewOpenAICompatibleGenerator_RequiresURLAndModel(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Model = "m"
	_, err := NewOpenAICompatibleGenerator(cfg, &config.ProviderConfig{Code: "x"}, observability.NewNopLogger())
	assert.Error(t, err)

	cfg.Generation.Model = ""
	_, err = NewOpenAICompatibleGenerator(cfg, &config.ProviderConfig{Code: "x", URL: "http://localhost"}, observability.NewNopLogger())
	assert.Error(t, err)
}

func TestStripThinking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think tags", "<think>\nreasoning\n</think>\nالجواب", "الجواب"},
		{"thinking tags", "<thinking>x</thinking>answer", "answer"},
		{"fenced", "```thinking\nsteps\n```\nanswer", "answer"},
		{"plain", "  answer  ", "answer"},
		{"code fence kept", "```go\nfmt.Println()\n```", "```go\nfmt.Println()\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripThinking(tt.in))
		})
	}
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]models.Segment{
		{Role: models.RoleSystem, Text: "style"},
		{Role: models.RoleSystem, Text: "locale"},
		{Role: models.RoleUser, Text: "q1"},
		{Role: models.RoleModel, Text: "a1"},
		{Role: models.RoleUser, Text: "what is this?", Inline: &models.InlineData{MIMEType: "image/jpeg", Data: []byte{1}}},
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "style\n\nlocale", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "what is this?", contents[2].Parts[0].Text)
	require.NotNil(t, contents[2].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", contents[2].Parts[1].InlineData.MIMEType)
	assert.Equal(t, "user", contents[2].Role)
}

type blockingGenerator struct {
	mu      sync.Mutex
	active  int
	peak    int
	release chan struct{}
}

func (b *blockingGenerator) Name() string { return "blocking" }

func (b *blockingGenerator) Generate(ctx context.Context, _ *models.GenerationRequest) (string, error) {
	b.mu.Lock()
	b.active++
	if b.active > b.peak {
		b.peak = b.active
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return "ok", nil
}

func TestGenerationLimiter_BoundsConcurrency(t *testing.T) {
	inner := &blockingGenerator{release: make(chan struct{})}
	limiter := NewGenerationLimiter(inner, 2, config.Default())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = limiter.Generate(context.Background(), &models.GenerationRequest{})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.LessOrEqual(t, inner.peak, 2)
	assert.Equal(t, "blocking", limiter.Name())
}

func TestGenerationLimiter_AcquireRespectsDeadline(t *testing.T) {
	inner := &blockingGenerator{release: make(chan struct{})}
	defer close(inner.release)
	limiter := NewGenerationLimiter(inner, 1, config.Default())

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = limiter.Generate(context.Background(), &models.GenerationRequest{})
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limiter.Generate(ctx, &models.GenerationRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrTimeout))
}

func TestNewGenerator_Selection(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewNopLogger()

	t.Run("no provider is unavailable", func(t *testing.T) {
		g, err := NewGenerator(ctx, config.Default(), logger)
		require.NoError(t, err)
		assert.Equal(t, "unavailable", g.Name())

		_, err = g.Generate(ctx, &models.GenerationRequest{})
		assert.True(t, errors.Is(err, contextutils.ErrAIProviderUnavailable))
		assert.True(t, contextutils.IsUpstreamFailure(err))
	})

	t.Run("openai-compatible provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.Providers = []config.ProviderConfig{{Code: "local", Kind: "openai", URL: "http://localhost:11434/v1"}}
		cfg.Generation.Provider = "local"
		cfg.Generation.Model = "m"
		g, err := NewGenerator(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, "openai", g.Name())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.Generation.Provider = "nope"
		_, err := NewGenerator(ctx, cfg, logger)
		assert.True(t, errors.Is(err, contextutils.ErrAIConfigInvalid))
	})

	t.Run("gemini without key", func(t *testing.T) {
		cfg := config.Default()
		cfg.Providers = []config.ProviderConfig{{Code: "g", Kind: "gemini"}}
		cfg.Generation.Provider = "g"
		cfg.Generation.Model = "gemini-2.5-flash"
		_, err := NewGenerator(ctx, cfg, logger)
		assert.True(t, errors.Is(err, contextutils.ErrAIConfigInvalid))
	})
}
