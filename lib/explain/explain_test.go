package explain

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/icco/movierec/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAI(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "cmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixture() (models.Movie, []models.ScoredMovie) {
	ref := models.NewMovie(1, "Toy Story (1995)", []string{"Animation", "Comedy"})
	recs := []models.ScoredMovie{
		{MovieID: 3114, Title: "Toy Story 2 (1999)", Genres: []string{"Animation"}, Score: 4.2},
		{MovieID: 2355, Title: "Bug's Life, A (1998)", Score: 3.9},
	}
	return ref, recs
}

func TestExplain(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := fakeOpenAI(t, `{"summary":"Pixar fans.","movies":[{"movie_id":3114,"reason":"Sequel."},{"movie_id":42,"reason":"Made up."}]}`, &req)
	e := New("test-key", "", slog.New(slog.NewTextHandler(io.Discard, nil)), WithBaseURL(srv.URL))

	ref, recs := fixture()
	exp, err := e.Explain(context.Background(), ref, recs)
	require.NoError(t, err)

	assert.Equal(t, "Pixar fans.", exp.Summary)
	require.Len(t, exp.Movies, 1)
	assert.Equal(t, 3114, exp.Movies[0].MovieID)

	assert.Equal(t, openai.GPT4oMini, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "Toy Story (1995) (Animation, Comedy)")
	assert.Contains(t, req.Messages[1].Content, "id 3114: Toy Story 2 (1999) [Animation] score 4.20")
}

func TestExplain_InvalidResponse(t *testing.T) {
	srv := fakeOpenAI(t, `{"movies":[]}`, nil)
	e := New("test-key", "gpt-4o", slog.New(slog.NewTextHandler(io.Discard, nil)), WithBaseURL(srv.URL))

	ref, recs := fixture()
	_, err := e.Explain(context.Background(), ref, recs)
	assert.Error(t, err)
}

func TestExplain_Empty(t *testing.T) {
	e := New("test-key", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := e.Explain(context.Background(), models.Movie{}, nil)
	assert.Error(t, err)
}
