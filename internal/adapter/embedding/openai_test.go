package embedding

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc, batchSize int) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("TEST_EMBED_KEY", "test-key")
	e, err := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", srv.URL, batchSize)
	require.NoError(t, err)
	return e
}

func TestEmbedBatchesSequentially(t *testing.T) {
	var batches [][]string
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches = append(batches, req.Input)

		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{
				Index:     i,
				Embedding: []float32{float32(len(batches)), float32(i)},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}

	e := newTestEmbedder(t, handler, 2)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := e.Embed(texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)

	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])

	// Order within and across batches is preserved.
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{1, 1}, vectors[1])
	assert.Equal(t, []float32{3, 0}, vectors[4])
}

func TestEmbedOmittedItemIsNil(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Provider omits the middle input.
		resp := embeddingResponse{Data: []embeddingData{
			{Index: 0, Embedding: []float32{1}},
			{Index: 2, Embedding: []float32{3}},
		}}
		json.NewEncoder(w).Encode(resp)
	}

	e := newTestEmbedder(t, handler, 10)

	vectors, err := e.Embed([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestEmbedBatchFailurePropagates(t *testing.T) {
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{0}})
		}
		json.NewEncoder(w).Encode(resp)
	}

	e := newTestEmbedder(t, handler, 1)

	_, err := e.Embed([]string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	// The failing batch aborts the call; the third batch is never sent.
	assert.Equal(t, 2, calls)
}

func TestEmbedAPIErrorBody(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	}

	e := newTestEmbedder(t, handler, 10)

	_, err := e.Embed([]string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestEmbedEmptyInput(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	}, 10)

	vectors, err := e.Embed(nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestNewEmbedderMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", "http://localhost", 0)
	require.Error(t, err)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, err := e.Embed([]string{"contract"})
	require.NoError(t, err)
	b, err := e.Embed([]string{"contract"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 8)
}
