package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

const (
	// Report packages can be large; the client timeout only guards stalled transfers
	defaultHTTPTimeout = 30 * time.Minute
	// Error bodies are cut to this size before landing in error messages
	maxErrorBodyBytes = 4096

	createReportMethod = "KBaseReport.create_extended_report"
	userAgent          = "virsorter-runner/1.0"
)

// HTTPBlobStore uploads files to a Shock-style blob service
type HTTPBlobStore struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPBlobStore creates a blob store client for baseURL
func NewHTTPBlobStore(baseURL, token string) *HTTPBlobStore {
	return &HTTPBlobStore{
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type blobStoreResponse struct {
	Data *struct {
		ID   string `json:"id"`
		File struct {
			Name string `json:"name"`
		} `json:"file"`
	} `json:"data"`
	Error  []string `json:"error"`
	Status int      `json:"status"`
}

// Store streams content as a multipart upload and returns the node handle
func (s *HTTPBlobStore) Store(ctx context.Context, name string, content io.Reader) (*entities.BlobHandle, error) {
	// Stream the multipart body so large packages are never held in memory
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("upload", name)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/node", pr)
	if err != nil {
		//nolint:errcheck,gosec // G104: unblock the writer goroutine
		pr.CloseWithError(err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "OAuth "+s.token)
	}

	resp, err := s.client.Do(req)
	// Do closes the request body, which also releases the writer goroutine
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	//nolint:errcheck // Defer close on response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("blob upload", resp)
	}

	var decoded blobStoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode blob store response: %w", err)
	}
	if len(decoded.Error) > 0 {
		return nil, fmt.Errorf("blob store error: %s", strings.Join(decoded.Error, "; "))
	}
	if decoded.Data == nil || decoded.Data.ID == "" {
		return nil, fmt.Errorf("blob store response has no node id")
	}

	return &entities.BlobHandle{ID: decoded.Data.ID, Name: name}, nil
}

// RPCReportRegistry creates reports through the platform's JSON-RPC callback service
type RPCReportRegistry struct {
	client      *http.Client
	callbackURL string
	token       string
}

// NewRPCReportRegistry creates a registry client for the callback URL
func NewRPCReportRegistry(callbackURL, token string) *RPCReportRegistry {
	return &RPCReportRegistry{
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		callbackURL: callbackURL,
		token:       token,
	}
}

type rpcRequest struct {
	Version string `json:"version"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      string `json:"id"`
}

type rpcError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type rpcResponse struct {
	Result []struct {
		Ref  string `json:"ref"`
		Name string `json:"name"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type htmlLinkParam struct {
	ShockID     string `json:"shock_id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type fileLinkParam struct {
	Path        string `json:"path,omitempty"`
	ShockID     string `json:"shock_id,omitempty"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type createReportParams struct {
	WorkspaceName       string          `json:"workspace_name"`
	Message             string          `json:"message"`
	HTMLLinks           []htmlLinkParam `json:"html_links"`
	DirectHTMLLinkIndex int             `json:"direct_html_link_index"`
	FileLinks           []fileLinkParam `json:"file_links"`
	ReportObjectName    string          `json:"report_object_name"`
	HTMLWindowHeight    int             `json:"html_window_height,omitempty"`
}

// Register submits the report descriptor and returns the created report
func (r *RPCReportRegistry) Register(ctx context.Context, report *entities.ReportDescriptor) (*entities.ReportInfo, error) {
	body, err := json.Marshal(rpcRequest{
		Version: "1.1",
		Method:  createReportMethod,
		Params:  []any{toCreateReportParams(report)},
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.callbackURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if r.token != "" {
		req.Header.Set("Authorization", r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", createReportMethod, err)
	}
	//nolint:errcheck // Defer close on response body
	defer resp.Body.Close()

	// JSON-RPC servers report failures as 500 with an error object in the body
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s failed with status %d: %s", createReportMethod, resp.StatusCode, truncate(data))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s failed: %s (%s, code %d)",
			createReportMethod, decoded.Error.Message, decoded.Error.Name, decoded.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s failed with status %d: %s", createReportMethod, resp.StatusCode, truncate(data))
	}
	if len(decoded.Result) == 0 || decoded.Result[0].Ref == "" {
		return nil, fmt.Errorf("%s returned no report reference", createReportMethod)
	}

	return &entities.ReportInfo{Name: decoded.Result[0].Name, Ref: decoded.Result[0].Ref}, nil
}

func toCreateReportParams(report *entities.ReportDescriptor) createReportParams {
	params := createReportParams{
		WorkspaceName:       report.WorkspaceName,
		Message:             report.Message,
		HTMLLinks:           []htmlLinkParam{},
		DirectHTMLLinkIndex: report.DirectHTMLLinkIndex,
		FileLinks:           []fileLinkParam{},
		ReportObjectName:    report.ObjectName,
		HTMLWindowHeight:    report.HTMLWindowHeight,
	}

	for _, link := range report.HTMLLinks {
		params.HTMLLinks = append(params.HTMLLinks, htmlLinkParam{
			ShockID:     link.Handle,
			Name:        link.Name,
			Label:       link.Label,
			Description: link.Description,
		})
	}
	for _, link := range report.FileLinks {
		params.FileLinks = append(params.FileLinks, fileLinkParam{
			Path:        link.Path,
			ShockID:     link.Handle,
			Name:        link.Name,
			Label:       link.Label,
			Description: link.Description,
		})
	}
	return params
}

func statusError(operation string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("%s failed with status %d: %s", operation, resp.StatusCode, truncate(data))
}

func truncate(data []byte) string {
	if len(data) > maxErrorBodyBytes {
		data = data[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(data))
}
