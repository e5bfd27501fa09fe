package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"

	"go-art-session/internal/apiclient"
	"go-art-session/pkg/apierror"
)

type apiDoer interface {
	Do(ctx context.Context, req apiclient.Request) (*resty.Response, error)
}

// ProxyHandler forwards /api/* to the marketplace backend with the session bearer.
type ProxyHandler struct {
	client       apiDoer
	maxBodyBytes int64
}

func NewProxyHandler(client apiDoer, maxBodyBytes int64) *ProxyHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &ProxyHandler{client: client, maxBodyBytes: maxBodyBytes}
}

var proxiedResponseHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"}

func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		limited := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		data, err := io.ReadAll(limited)
		if err != nil {
			writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge))
			return
		}
		body = data
	}

	resp, err := h.client.Do(r.Context(), apiclient.Request{
		Method: r.Method,
		Path:   "/" + chi.URLParam(r, "*"),
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	for _, name := range proxiedResponseHeaders {
		if v := resp.Header().Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode())
	_, _ = w.Write(resp.Body())
}
