// Package drive provides a client for the Google Drive v3 REST API,
// covering the metadata, download, upload, and listing calls the
// document pipeline needs.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/resilience"
)

// Client defines the Drive operations used by the document pipeline.
type Client interface {
	// GetFile fetches file metadata.
	GetFile(ctx context.Context, fileID string) (*File, error)
	// Download fetches the file content.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// Upload creates a file under the given parent folder.
	Upload(ctx context.Context, name, parentID, mimeType string, data []byte) (*File, error)
	// ListFolder lists the files directly inside a folder.
	ListFolder(ctx context.Context, folderID string) ([]File, error)
}

// File is Drive file metadata.
type File struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size,string,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

type fileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// TokenSource supplies a bearer token per request, so callers can plug in
// refreshing OAuth credentials or a static token.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields the same token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Option configures the Drive client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithUploadURL sets a custom upload base URL (for testing).
func WithUploadURL(url string) Option {
	return func(c *httpClient) {
		c.uploadURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithCircuitBreaker guards all calls with the given breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	tokens    TokenSource
	baseURL   string
	uploadURL string
	http      *http.Client
	breaker   *resilience.CircuitBreaker
}

// NewClient creates a Drive client.
func NewClient(tokens TokenSource, opts ...Option) Client {
	c := &httpClient{
		tokens:    tokens,
		baseURL:   "https://www.googleapis.com/drive/v3",
		uploadURL: "https://www.googleapis.com/upload/drive/v3",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// do executes a request with auth, the optional circuit breaker, and
// exponential backoff on transient failures. The request body, if any, is
// re-created per attempt via makeBody.
func (c *httpClient) do(ctx context.Context, method, reqURL, contentType string, makeBody func() io.Reader) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	token, err := c.tokens(ctx)
	if err != nil {
		return nil, 0, eris.Wrap(err, "drive: token source")
	}

	var body []byte
	var statusCode int
	attempt := func(ctx context.Context) error {
		var reqBody io.Reader
		if makeBody != nil {
			reqBody = makeBody()
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return eris.Wrap(err, "drive: create request")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "drive: read response body")
		}
		statusCode = resp.StatusCode

		if retryableStatusCode(resp.StatusCode) {
			return resilience.NewTransientError(
				eris.Errorf("drive: status %d: %s", resp.StatusCode, string(body)),
				resp.StatusCode,
			)
		}
		return nil
	}

	run := attempt
	if c.breaker != nil {
		run = func(ctx context.Context) error { return c.breaker.Execute(ctx, attempt) }
	}

	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		lastErr = run(ctx)
		if lastErr == nil {
			return body, statusCode, nil
		}
		if eris.Is(lastErr, resilience.ErrCircuitOpen) || !resilience.IsTransient(lastErr) {
			return nil, statusCode, lastErr
		}
		if i < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, statusCode, lastErr
}

func (c *httpClient) GetFile(ctx context.Context, fileID string) (*File, error) {
	reqURL := fmt.Sprintf("%s/files/%s?fields=%s",
		c.baseURL, url.PathEscape(fileID), url.QueryEscape("id,name,mimeType,size,parents"))

	body, statusCode, err := c.do(ctx, http.MethodGet, reqURL, "", nil)
	if err != nil {
		return nil, eris.Wrapf(err, "drive: get file %s", fileID)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("drive: get file %s: status %d: %s", fileID, statusCode, string(body))
	}

	var f File
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, eris.Wrap(err, "drive: unmarshal file metadata")
	}
	return &f, nil
}

func (c *httpClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, url.PathEscape(fileID))

	body, statusCode, err := c.do(ctx, http.MethodGet, reqURL, "", nil)
	if err != nil {
		return nil, eris.Wrapf(err, "drive: download %s", fileID)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("drive: download %s: status %d", fileID, statusCode)
	}
	return body, nil
}

func (c *httpClient) Upload(ctx context.Context, name, parentID, mimeType string, data []byte) (*File, error) {
	meta := map[string]any{"name": name, "mimeType": mimeType}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, eris.Wrap(err, "drive: marshal upload metadata")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, eris.Wrap(err, "drive: create metadata part")
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, eris.Wrap(err, "drive: write metadata part")
	}

	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return nil, eris.Wrap(err, "drive: create media part")
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, eris.Wrap(err, "drive: write media part")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "drive: close multipart body")
	}

	reqURL := c.uploadURL + "/files?uploadType=multipart&fields=" + url.QueryEscape("id,name,mimeType,size,parents")
	contentType := "multipart/related; boundary=" + mw.Boundary()
	payload := buf.Bytes()

	body, statusCode, err := c.do(ctx, http.MethodPost, reqURL, contentType, func() io.Reader {
		return bytes.NewReader(payload)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "drive: upload %s", name)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("drive: upload %s: status %d: %s", name, statusCode, string(body))
	}

	var f File
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, eris.Wrap(err, "drive: unmarshal upload response")
	}
	return &f, nil
}

func (c *httpClient) ListFolder(ctx context.Context, folderID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var files []File
	pageToken := ""
	for {
		reqURL := fmt.Sprintf("%s/files?q=%s&fields=%s&pageSize=1000",
			c.baseURL, url.QueryEscape(query),
			url.QueryEscape("nextPageToken,files(id,name,mimeType,size,parents)"))
		if pageToken != "" {
			reqURL += "&pageToken=" + url.QueryEscape(pageToken)
		}

		body, statusCode, err := c.do(ctx, http.MethodGet, reqURL, "", nil)
		if err != nil {
			return nil, eris.Wrapf(err, "drive: list folder %s", folderID)
		}
		if statusCode != http.StatusOK {
			return nil, eris.Errorf("drive: list folder %s: status %d: %s", folderID, statusCode, string(body))
		}

		var page fileList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "drive: unmarshal file list")
		}
		files = append(files, page.Files...)

		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}
