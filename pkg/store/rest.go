package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/ctlsh/pkg/model"
	"github.com/newtron-network/ctlsh/pkg/util"
)

// RESTConfig configures a RESTBackend.
type RESTConfig struct {
	// Controller is host[:port] of the controller, or a full base URL.
	Controller string
	Timeout    time.Duration
	CacheTTL   time.Duration

	// Recorder, when set, receives one "METHOD URL" line per request.
	Recorder io.Writer

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// RESTBackend talks to the controller's model REST API:
//
//	GET    /rest/v1/model/<obj-type>/?field=value
//	POST   /rest/v1/model/<obj-type>/
//	PUT    /rest/v1/model/<obj-type>/?<pk>=<value>
//	DELETE /rest/v1/model/<obj-type>/?field=value
type RESTBackend struct {
	base   string
	client *http.Client
	cache  *URLCache

	recMu    sync.Mutex
	recorder io.Writer
}

// NewRESTBackend creates a REST backend.
func NewRESTBackend(cfg RESTConfig) *RESTBackend {
	base := cfg.Controller
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	base = strings.TrimRight(base, "/") + "/rest/v1/"

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &RESTBackend{
		base:     base,
		client:   client,
		cache:    NewURLCache(cfg.CacheTTL),
		recorder: cfg.Recorder,
	}
}

// BaseURL returns the API root, ending in "/".
func (b *RESTBackend) BaseURL() string {
	return b.base
}

// Cache exposes the URL cache.
func (b *RESTBackend) Cache() *URLCache {
	return b.cache
}

// ClearCache drops every cached response.
func (b *RESTBackend) ClearCache() {
	b.cache.Clear()
}

// Close releases idle connections.
func (b *RESTBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *RESTBackend) modelURL(objType string, filter map[string]interface{}) string {
	u := b.base + "model/" + objType + "/"
	if len(filter) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, model.FormatValue(v))
	}
	return u + "?" + q.Encode()
}

// Query fetches the rows of objType matching filter.
func (b *RESTBackend) Query(ctx context.Context, objType string, filter map[string]interface{}) ([]Row, error) {
	body, err := b.get(ctx, b.modelURL(objType, filter))
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, util.NewRestError("decode", "", fmt.Sprintf("model/%s/: %v", objType, err))
	}
	return rows, nil
}

// GetJSON fetches a resource relative to the API root.
func (b *RESTBackend) GetJSON(ctx context.Context, path string) (interface{}, error) {
	u := b.base + strings.TrimLeft(path, "/")
	body, err := b.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, util.NewRestError("decode", "", fmt.Sprintf("%s: %v", path, err))
	}
	return v, nil
}

// Create adds a row.
func (b *RESTBackend) Create(ctx context.Context, objType, pkField string, row Row) error {
	defer b.ClearCache()
	_, err := b.do(ctx, http.MethodPost, b.modelURL(objType, nil), row)
	return err
}

// Update changes fields of the row whose primary key is pk.
func (b *RESTBackend) Update(ctx context.Context, objType, pkField, pk string, fields Row) error {
	defer b.ClearCache()
	_, err := b.do(ctx, http.MethodPut, b.modelURL(objType, map[string]interface{}{pkField: pk}), fields)
	return err
}

// Delete removes the rows matching filter.
func (b *RESTBackend) Delete(ctx context.Context, objType string, filter map[string]interface{}) error {
	defer b.ClearCache()
	_, err := b.do(ctx, http.MethodDelete, b.modelURL(objType, filter), nil)
	return err
}

func (b *RESTBackend) get(ctx context.Context, u string) ([]byte, error) {
	if body, ok := b.cache.Get(u); ok {
		util.WithField("url", u).Debug("url cache hit")
		return body, nil
	}
	body, err := b.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	b.cache.Put(u, body)
	return body, nil
}

// restErrorBody is the controller's error response.
type restErrorBody struct {
	ErrorType   string `json:"error_type"`
	Description string `json:"description"`
}

func (b *RESTBackend) do(ctx context.Context, method, u string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, util.NewInternalError("encoding %s %s: %v", method, u, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, util.NewInternalError("building %s %s: %v", method, u, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	b.record(method, u)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, util.NewRestError("connection", "", fmt.Sprintf("%s %s: %v", method, u, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, util.NewRestError("connection", "", fmt.Sprintf("%s %s: reading response: %v", method, u, err))
	}
	util.WithFields(map[string]interface{}{
		"method":   method,
		"url":      u,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("rest request")

	if resp.StatusCode >= 400 {
		var eb restErrorBody
		_ = json.Unmarshal(body, &eb)
		if eb.ErrorType == "" {
			eb.ErrorType = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, util.NewRestError(eb.ErrorType, eb.Description, fmt.Sprintf("%s %s: %s", method, u, resp.Status))
	}
	return body, nil
}

func (b *RESTBackend) record(method, u string) {
	if b.recorder == nil {
		return
	}
	b.recMu.Lock()
	defer b.recMu.Unlock()
	fmt.Fprintf(b.recorder, "%s %s\n", method, u)
}
