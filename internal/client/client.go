// Package client is the upload transport for the asset API. It validates and
// shrinks images before sending them, reports progress, and maps failures onto
// a small error taxonomy with user-facing messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"assetapi/internal/compress"
	"assetapi/internal/config"
	"assetapi/internal/logger"
	"assetapi/internal/model"
)

const uploadField = "image"

// File is an image selected for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult is what the server stored.
type UploadResult struct {
	URL          string
	Filename     string
	OriginalName string
	// Size and ContentType describe the bytes actually sent.
	Size        int64
	ContentType string
	// Compressed reports whether the payload was re-encoded before sending.
	Compressed   bool
	OriginalSize int64
}

// CheckResult is the server's view of one asset.
type CheckResult struct {
	Exists   bool      `json:"exists"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Client talks to the asset API. It is safe for concurrent use.
type Client struct {
	base     string
	http     *http.Client
	timeout  time.Duration
	resolver Resolver
	log      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request's wall clock. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL, e.g. "http://localhost:3001".
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		base:     base,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:  config.DefaultUploadTimeout,
		resolver: NewResolver(base),
		log:      logger.L,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the environment-derived client config.
func NewFromConfig(cfg *config.ClientConfig, opts ...Option) *Client {
	return New(cfg.BaseURL, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...)
}

// Resolver returns the URL resolver bound to this client's base URL.
func (c *Client) Resolver() Resolver { return c.resolver }

// ResolveURL is shorthand for c.Resolver().ResolveURL.
func (c *Client) ResolveURL(ref string) string { return c.resolver.ResolveURL(ref) }

// Validate checks the local preconditions of an upload.
func Validate(f File) error {
	if len(f.Data) == 0 {
		return &ValidationError{Reason: "No file selected."}
	}
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return &ValidationError{Reason: "Please choose an image file."}
	}
	if int64(len(f.Data)) > config.MaxUploadBytes {
		return &ValidationError{Reason: "File too large. Max 10 MB."}
	}
	return nil
}

// Upload validates f, compresses it when it exceeds the compression
// threshold, and sends it as a single multipart request.
func (c *Client) Upload(ctx context.Context, f File, onProgress ProgressFunc) (*UploadResult, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	payload, name, ct, compressed := c.prepare(f)
	if int64(len(payload)) > config.MaxUploadBytes {
		return nil, &ValidationError{Reason: "File too large. Max 10 MB."}
	}

	body, contentType, err := multipartBody(name, ct, payload)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	p := newProgress(onProgress)
	p.report(0)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.base+"/api/upload-image",
		&progressReader{r: bytes.NewReader(body), total: int64(len(body)), p: p})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readServerError(resp)
	}

	var out struct {
		Success      bool   `json:"success"`
		URL          string `json:"url"`
		Filename     string `json:"filename"`
		OriginalName string `json:"originalName"`
		Size         int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classify(ctx, reqCtx, fmt.Errorf("decode response: %w", err))
	}
	if !out.Success || out.Filename == "" {
		return nil, &ServerError{Status: resp.StatusCode, Message: "upload was not accepted"}
	}
	p.report(100)

	ref := out.URL
	if ref == "" {
		ref = out.Filename
	}
	return &UploadResult{
		URL:          c.resolver.ResolveURL(ref),
		Filename:     out.Filename,
		OriginalName: out.OriginalName,
		Size:         out.Size,
		ContentType:  ct,
		Compressed:   compressed,
		OriginalSize: int64(len(f.Data)),
	}, nil
}

// prepare runs the compression ladder. Compression failures fall back to the original bytes.
func (c *Client) prepare(f File) ([]byte, string, string, bool) {
	if int64(len(f.Data)) <= compress.Threshold {
		return f.Data, f.Name, f.ContentType, false
	}
	res, err := compress.Shrink(f.Data)
	if err != nil {
		c.log.Warn("compression failed, sending original",
			slog.String("name", f.Name),
			slog.Int("size", len(f.Data)),
			slog.Any("error", err),
		)
		return f.Data, f.Name, f.ContentType, false
	}
	if !res.Compressed {
		return f.Data, f.Name, f.ContentType, false
	}
	c.log.Debug("image compressed",
		slog.String("name", f.Name),
		slog.Int("from", len(f.Data)),
		slog.Int("to", len(res.Data)),
		slog.Int("passes", res.Passes),
	)
	return res.Data, jpegName(f.Name), compress.OutputContentType, true
}

// jpegName swaps the extension of name for .jpg.
func jpegName(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}

func multipartBody(name, contentType string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Replace uploads f and then removes oldRef. The old asset is only touched
// after the new one is stored; failing to delete it is logged and ignored.
func (c *Client) Replace(ctx context.Context, oldRef string, f File, onProgress ProgressFunc) (*UploadResult, error) {
	res, err := c.Upload(ctx, f, onProgress)
	if err != nil {
		return nil, err
	}
	old := FilenameFromReference(oldRef)
	if old == "" || old == res.Filename {
		return res, nil
	}
	if _, err := c.Delete(ctx, old); err != nil {
		c.log.Warn("failed to delete replaced image", slog.String("filename", old), slog.Any("error", err))
	}
	return res, nil
}

// Delete removes filename from the server. An empty name or an asset that is
// already gone counts as success. Failures return false and are never retried.
func (c *Client) Delete(ctx context.Context, filename string) (bool, error) {
	if filename == "" {
		return true, nil
	}
	resp, err := c.do(ctx, http.MethodDelete, "/api/delete-image/"+url.PathEscape(filename))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return true, nil
	default:
		return false, readServerError(resp)
	}
}

// Check asks the server whether filename exists.
func (c *Client) Check(ctx context.Context, filename string) (*CheckResult, error) {
	if err := validateName(filename); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/check-image/"+url.PathEscape(filename))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out CheckResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	case http.StatusNotFound:
		return &CheckResult{Exists: false, Filename: filename}, nil
	default:
		return nil, readServerError(resp)
	}
}

// Exists issues a HEAD request against the resolved asset URL.
func (c *Client) Exists(ctx context.Context, ref string) (bool, error) {
	target := c.resolver.ResolveURL(ref)
	if target == "" {
		return false, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, target, nil)
	if err != nil {
		return false, &ValidationError{Reason: "Invalid image reference."}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, classify(ctx, reqCtx, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &ServerError{Status: resp.StatusCode}
	}
}

// List returns every asset the server holds, newest first.
func (c *Client) List(ctx context.Context) ([]model.Asset, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/images")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readServerError(resp)
	}

	var out struct {
		Data []model.Asset `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for i := range out.Data {
		out.Data[i].URL = c.resolver.ResolveURL(out.Data[i].Filename)
	}
	return out.Data, nil
}

// do sends a body-less request under the client timeout. The caller closes the body.
// The timeout context is released when the body is closed.
func (c *Client) do(ctx context.Context, method, p string) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(reqCtx, method, c.base+p, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, classify(ctx, reqCtx, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func validateName(filename string) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return &ValidationError{Reason: "Invalid image name."}
	}
	return nil
}

// classify maps a transport error onto the taxonomy. parent is the caller's
// context, reqCtx the one carrying the client timeout.
func classify(parent, reqCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%w: %w", ErrAborted, err)
	case parent.Err() != nil, errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

func readServerError(resp *http.Response) error {
	se := &ServerError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		se.Message = payload.Message
		se.Code = payload.Code
	}
	return se
}
