package smobilpay

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

type mockResponseFunc func() (status int, body string)

type (
	mockResponse struct {
		fn  mockResponseFunc
		err error
	}

	mockHttpClient struct {
		mu       sync.Mutex
		requests map[string]mockResponse
		calls    []*http.Request
	}
)

// mockHttpResponse returns a http.Response with the given status and body.
func mockHttpResponse(status int, body string) *http.Response {
	return &http.Response{
		Status:     http.StatusText(status),
		StatusCode: status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Body:       io.NopCloser(bytes.NewBuffer([]byte(body))),
	}
}

// newMockHttpClient creates a new instance of mockHttpClient
func newMockHttpClient() *mockHttpClient {
	return &mockHttpClient{
		requests: make(map[string]mockResponse),
	}
}

func mockKey(method, url string) string {
	return method + " " + url
}

// MockRequest appends the given response for the provided method and url.
func (m *mockHttpClient) MockRequest(method, url string, fn mockResponseFunc) {
	m.requests[mockKey(method, url)] = mockResponse{fn: fn}
}

// MockError makes requests to the provided method and url fail at the transport level.
func (m *mockHttpClient) MockError(method, url string, err error) {
	m.requests[mockKey(method, url)] = mockResponse{err: err}
}

// Calls returns the requests received so far.
func (m *mockHttpClient) Calls() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.calls...)
}

// Do checks if the given req.URL exists in the available requests lists and returns the stored response.
// If none exists, it returns status http.StatusNotFound
func (m *mockHttpClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if mock, ok := m.requests[mockKey(req.Method, req.URL.String())]; ok {
		if mock.err != nil {
			return nil, mock.err
		}

		if mock.fn != nil {
			status, body := mock.fn()
			return mockHttpResponse(status, body), nil
		}
	}

	return mockHttpResponse(http.StatusNotFound, http.StatusText(http.StatusNotFound)), nil
}
