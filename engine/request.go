// engine/request.go
package engine

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestOptions carry the per-request settings a caller may attach when enqueueing.
// Zero values fall back to engine defaults (GET, configured timeout, strict TLS, no
// redirect following).
type RequestOptions struct {
	Method             string
	Headers            map[string]string
	Body               []byte
	Timeout            time.Duration
	InsecureSkipVerify bool
	FollowRedirects    bool
	MaxRedirects       int
}

// Request is one pending HTTP request descriptor. Immutable once enqueued.
type Request struct {
	ID                 uuid.UUID
	URL                string
	Method             string
	Headers            map[string]string
	Body               []byte
	Timeout            time.Duration
	InsecureSkipVerify bool
	FollowRedirects    bool
	MaxRedirects       int
}

// NewRequest builds a Request from a URL and options, assigning it a unique ID.
func NewRequest(url string, opts RequestOptions) Request {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return Request{
		ID:                 uuid.New(),
		URL:                url,
		Method:             method,
		Headers:            headers,
		Body:               opts.Body,
		Timeout:            opts.Timeout,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		FollowRedirects:    opts.FollowRedirects,
		MaxRedirects:       opts.MaxRedirects,
	}
}

// Result is the outcome of one request. Exactly one Result is produced per Request.
// Success means the transfer completed without a transport error and the status code
// is below 400; everything else carries the captured error in Err.
type Result struct {
	RequestID  uuid.UUID     `json:"request_id"`
	StatusCode int           `json:"http_status"`
	Body       []byte        `json:"body,omitempty"`
	Headers    http.Header   `json:"headers,omitempty"`
	Err        string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Success    bool          `json:"success"`
}
