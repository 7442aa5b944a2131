// Package ragproxy is a thin HTTP client for the external document Q&A
// microservice. PDFs are chunked, embedded, and answered over there; this
// side only tracks ownership rows and forwards requests.
package ragproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Sentinel errors callers map onto specific HTTP responses.
var (
	// ErrBusy means the document service answered 503; retrying with a
	// smaller document usually helps.
	ErrBusy = errors.New("rag service busy")
	// ErrTimeout means the request exceeded the client timeout.
	ErrTimeout = errors.New("rag service timed out")
	// ErrNoDocuments means the service has nothing indexed for the request.
	ErrNoDocuments = errors.New("no documents indexed")
)

// StatusError carries a non-2xx response with no dedicated sentinel. The
// status code is passed through to the API caller.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("RAG service error: %s", e.Body)
}

const (
	defaultTimeout = 120 * time.Second
	connectTimeout = 10 * time.Second
	healthTimeout  = 5 * time.Second
)

// Client talks to the RAG microservice. Every request carries the
// configured API key in an X-API-Key header.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// New builds a client from the rag.* config keys.
func New(cfg *viper.Viper, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.GetInt("rag.timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		baseURL: strings.TrimRight(cfg.GetString("rag.base_url"), "/"),
		apiKey:  cfg.GetString("rag.api_key"),
		logger:  logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

// Health probes the service with a short deadline. Any failure, transport
// or status, means the service should be treated as unavailable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rag health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rag health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// UploadResult reports a successful ingestion.
type UploadResult struct {
	DocumentID int64 `json:"document_id"`
	ChunkCount int   `json:"chunk_count"`
}

// Upload sends a PDF to be chunked and indexed under docID.
func (c *Client) Upload(ctx context.Context, filename string, content []byte, docID int64) (*UploadResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	// CreateFormFile would label the part application/octet-stream; the
	// service expects application/pdf.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "application/pdf")
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := form.WriteField("doc_id", strconv.FormatInt(docID, 10)); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("upload %q: %w", filename, ErrTimeout)
		}
		return nil, fmt.Errorf("upload %q: %w", filename, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, ErrBusy
	case resp.StatusCode >= 400:
		return nil, readStatusError(resp)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

// RetrievedChunk is one passage the service grounded its answer on.
type RetrievedChunk struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	DocID      string  `json:"doc_id"`
	ChunkIndex int     `json:"chunk_index"`
	PageNumber *int    `json:"page_number,omitempty"`
	Section    *string `json:"section,omitempty"`
	Position   *int    `json:"position,omitempty"`
}

// Answer is the service's response to a question.
type Answer struct {
	Answer  string           `json:"answer"`
	Context []RetrievedChunk `json:"context"`
}

type askRequest struct {
	Question string  `json:"question"`
	TopK     int     `json:"top_k"`
	DocIDs   []int64 `json:"doc_ids,omitempty"`
}

// Ask poses a question scoped to the given document IDs. An empty docIDs
// slice leaves scoping to the service.
func (c *Client) Ask(ctx context.Context, question string, topK int, docIDs []int64) (*Answer, error) {
	payload, err := json.Marshal(askRequest{Question: question, TopK: topK, DocIDs: docIDs})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ask", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("ask: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("ask: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoDocuments
	case resp.StatusCode >= 400:
		return nil, readStatusError(resp)
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode ask response: %w", err)
	}
	return &answer, nil
}

// Delete removes a document from the vector store. A document the service
// no longer knows about is not an error; callers treat other failures as
// best-effort and proceed with their own cleanup.
func (c *Client) Delete(ctx context.Context, docID int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d", docID), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", docID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return readStatusError(resp)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
