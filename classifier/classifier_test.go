package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"Technology", "News", "Video Games", "Entertainment", "Science", "Business"}

func newTestClient(url string) *Client {
	return NewClient("hf-token",
		WithBaseURL(url),
		WithRateLimit(0),
		WithRetries(2, time.Millisecond),
	)
}

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/facebook/bart-large-mnli", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a post about compilers", req.Inputs)
		assert.Equal(t, labels, req.Parameters.CandidateLabels)

		json.NewEncoder(w).Encode(Result{
			Sequence: req.Inputs,
			Labels:   []string{"Technology", "Science", "News"},
			Scores:   []float64{0.8, 0.15, 0.05},
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Classify(context.Background(), "a post about compilers", labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Technology", "Science", "News"}, result.Labels)
	assert.Equal(t, []float64{0.8, 0.15, 0.05}, result.Scores)
}

func TestClassifyReturnsArraysAsReceived(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Labels: []string{"Technology", "News"}, Scores: []float64{1}})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Classify(context.Background(), "text", labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Technology", "News"}, result.Labels)
	assert.Equal(t, []float64{1}, result.Scores)
}

func TestClassifyInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Classify(context.Background(), "text", labels)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClassifyRetriesWhileModelLoads(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20}`))
			return
		}
		json.NewEncoder(w).Encode(Result{Labels: []string{"News"}, Scores: []float64{1}})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Classify(context.Background(), "text", labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"News"}, result.Labels)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClassifyGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Classify(context.Background(), "text", labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClassifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid token"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Classify(context.Background(), "text", labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyNoLabels(t *testing.T) {
	_, err := NewClient("token").Classify(context.Background(), "text", nil)
	assert.Error(t, err)
}
