// Package testutil provides testing utilities for the Pixabay gallery.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockAPIKey is the key MockPixabay accepts unless configured otherwise.
const MockAPIKey = "test-key"

// MockResponse defines a canned response for one query/page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Corpus describes the results the mock serves for a query.
type Corpus struct {
	// TotalHits is reported in every response for the query.
	TotalHits int

	// Available caps the hits actually served. Zero means TotalHits.
	Available int
}

// MockPixabay is a configurable mock of the Pixabay search endpoint.
// Queries are matched case-insensitively after trimming.
type MockPixabay struct {
	server *httptest.Server

	mu        sync.RWMutex
	apiKey    string
	corpora   map[string]Corpus
	overrides map[string]MockResponse
	gates     map[string]chan struct{}
	delay     time.Duration
	limit     int
	remaining int

	// Tracking
	requests          []url.Values
	lastRequestHeader http.Header
}

// NewMockPixabay creates and starts a mock server.
func NewMockPixabay() *MockPixabay {
	mock := &MockPixabay{
		apiKey:    MockAPIKey,
		corpora:   make(map[string]Corpus),
		overrides: make(map[string]MockResponse),
		gates:     make(map[string]chan struct{}),
		limit:     100,
		remaining: 100,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the endpoint URL, ending in /api/ like the real one.
func (m *MockPixabay) URL() string {
	return m.server.URL + "/api/"
}

// Close shuts down the mock server.
func (m *MockPixabay) Close() {
	m.mu.Lock()
	for k, ch := range m.gates {
		close(ch)
		delete(m.gates, k)
	}
	m.mu.Unlock()
	m.server.Close()
}

// SetCorpus registers the results for query.
func (m *MockPixabay) SetCorpus(query string, corpus Corpus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corpora[normalize(query)] = corpus
}

// SetResponse overrides the response for query/page.
func (m *MockPixabay) SetResponse(query string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[pageKey(query, page)] = resp
}

// ClearResponse removes an override set by SetResponse.
func (m *MockPixabay) ClearResponse(query string, page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, pageKey(query, page))
}

// Gate holds requests for query/page until release is called.
func (m *MockPixabay) Gate(query string, page int) (release func()) {
	ch := make(chan struct{})
	key := pageKey(query, page)

	m.mu.Lock()
	m.gates[key] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[key] == ch {
				delete(m.gates, key)
				close(ch)
			}
			m.mu.Unlock()
		})
	}
}

// SetDelay delays every response.
func (m *MockPixabay) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetRateLimit sets the quota reported in X-RateLimit-* headers.
func (m *MockPixabay) SetRateLimit(limit, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.remaining = remaining
}

// RequestCount returns the number of requests served.
func (m *MockPixabay) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the query parameters of every request, in order.
func (m *MockPixabay) Requests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// PagesRequested returns the page parameter of every request, in order.
func (m *MockPixabay) PagesRequested() []int {
	var pages []int
	for _, q := range m.Requests() {
		p, _ := strconv.Atoi(q.Get("page"))
		pages = append(pages, p)
	}
	return pages
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockPixabay) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// Reset clears tracking and overrides.
func (m *MockPixabay) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.lastRequestHeader = nil
	m.overrides = make(map[string]MockResponse)
}

func (m *MockPixabay) handle(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	page := atoiDefault(params.Get("page"), 1)
	perPage := atoiDefault(params.Get("per_page"), 20)
	key := pageKey(query, page)

	m.mu.Lock()
	m.requests = append(m.requests, params)
	m.lastRequestHeader = r.Header.Clone()
	override, hasOverride := m.overrides[key]
	gate := m.gates[key]
	delay := m.delay
	corpus := m.corpora[normalize(query)]
	apiKey := m.apiKey
	limit := m.limit
	if m.remaining > 0 {
		m.remaining--
	}
	remaining := m.remaining
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", "60")

	if hasOverride {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		for k, v := range override.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(override.StatusCode)
		w.Write([]byte(override.Body))
		return
	}

	if params.Get("key") != apiKey {
		http.Error(w, "[ERROR 400] Invalid or missing API key (https://pixabay.com/api/docs/).", http.StatusBadRequest)
		return
	}
	if perPage < 3 || perPage > 200 {
		http.Error(w, `[ERROR 400] "per_page" is out of valid range.`, http.StatusBadRequest)
		return
	}
	if page < 1 || (page > 1 && (page-1)*perPage >= corpus.TotalHits) {
		http.Error(w, "[ERROR 400] page is out of valid range.", http.StatusBadRequest)
		return
	}

	available := corpus.Available
	if available == 0 || available > corpus.TotalHits {
		available = corpus.TotalHits
	}

	hits := make([]map[string]any, 0, perPage)
	for i := (page - 1) * perPage; i < page*perPage && i < available; i++ {
		hits = append(hits, MockHit(query, i))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":     corpus.TotalHits + corpus.TotalHits/10,
		"totalHits": corpus.TotalHits,
		"hits":      hits,
	})
}

// MockHit builds the index-th hit for query the way Pixabay encodes it.
func MockHit(query string, index int) map[string]any {
	id := 1000 + index
	return map[string]any{
		"id":            id,
		"pageURL":       fmt.Sprintf("https://pixabay.com/photos/%s-%d/", strings.ReplaceAll(normalize(query), " ", "-"), id),
		"type":          "photo",
		"tags":          fmt.Sprintf("%s, nature, sample %d", normalize(query), index),
		"previewURL":    fmt.Sprintf("https://cdn.pixabay.com/photo/%d_150.jpg", id),
		"webformatURL":  fmt.Sprintf("https://pixabay.com/get/%d_640.jpg", id),
		"largeImageURL": fmt.Sprintf("https://pixabay.com/get/%d_1280.jpg", id),
		"views":         10 * id,
		"downloads":     5 * id,
		"likes":         index,
		"comments":      index % 7,
		"user_id":       42,
		"user":          "mockuser",
	}
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func pageKey(query string, page int) string {
	return fmt.Sprintf("%s#%d", normalize(query), page)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
