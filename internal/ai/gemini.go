package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultImageMIMEType = "image/jpeg"

// redactedKey replaces the api key in request URLs that end up in errors.
const redactedKey = "REDACTED"

var (
	ErrNoCandidates = errors.New("gemini response has no candidates")
	ErrEmptyContent = errors.New("gemini candidate has no content parts")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini response status %d: %s", e.StatusCode, e.Body)
}

type PromptRequest struct {
	Text          string
	ImageBase64   string // sent as inline data when non-empty
	ImageMIMEType string
	Grounding     bool
}

type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type Response struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

type GeminiConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}
}

func (c *GeminiClient) Model() string {
	return c.model
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type webRef struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingAttributions []struct {
				Web *webRef `json:"web"`
			} `json:"groundingAttributions"`
			GroundingChunks []struct {
				Web *webRef `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

func buildRequest(prompt PromptRequest) generateContentRequest {
	parts := []part{{Text: prompt.Text}}
	if prompt.ImageBase64 != "" {
		mimeType := prompt.ImageMIMEType
		if mimeType == "" {
			mimeType = DefaultImageMIMEType
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     prompt.ImageBase64,
		}})
	}

	req := generateContentRequest{Contents: []content{{Parts: parts}}}
	if prompt.Grounding {
		req.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	return req
}

func (c *GeminiClient) endpoint(apiKey string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(apiKey))
}

// GenerateContent makes a single generateContent call. It does not retry.
func (c *GeminiClient) GenerateContent(ctx context.Context, apiKey string, prompt PromptRequest) (*Response, error) {
	bodyBytes, err := json.Marshal(buildRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(apiKey), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build gemini request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error quotes the full request URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.endpoint(redactedKey)
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return parseResponse(raw)
}

func parseResponse(raw []byte) (*Response, error) {
	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse gemini json failed: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	candidate := parsed.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, ErrEmptyContent
	}

	result := &Response{
		Text:    candidate.Content.Parts[0].Text,
		Sources: []Source{},
	}
	if md := candidate.GroundingMetadata; md != nil {
		refs := make([]*webRef, 0, len(md.GroundingAttributions))
		for _, a := range md.GroundingAttributions {
			refs = append(refs, a.Web)
		}
		// google_search grounding reports chunks instead of attributions.
		if len(refs) == 0 {
			for _, ch := range md.GroundingChunks {
				refs = append(refs, ch.Web)
			}
		}
		for _, ref := range refs {
			if ref == nil || ref.URI == "" {
				continue
			}
			result.Sources = append(result.Sources, Source{URI: ref.URI, Title: ref.Title})
		}
	}
	return result, nil
}
