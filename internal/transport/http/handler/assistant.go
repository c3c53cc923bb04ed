package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fwk-assistant/internal/ai"
	"fwk-assistant/internal/app"
	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/render"
	"fwk-assistant/internal/transport/http/middleware"
	"fwk-assistant/internal/transport/http/response"
	"fwk-assistant/internal/view"
)

// maxImageSize bounds the decoded inline image.
const maxImageSize = 5 << 20

type AssistantHandler struct {
	assistantService *app.AssistantService
	sessionService   *app.SessionService
	renderer         *render.Renderer
}

type PromptRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	Image     string `json:"image"`
	MIMEType  string `json:"mime_type"`
	Grounding bool   `json:"grounding"`
	// APIKey is the key input's value. Omit it when the page has no key
	// input.
	APIKey *string `json:"api_key"`
}

type RenderRequest struct {
	Text string `json:"text"`
}

func NewAssistantHandler(assistantService *app.AssistantService, sessionService *app.SessionService, renderer *render.Renderer) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		sessionService:   sessionService,
		renderer:         renderer,
	}
}

func (h *AssistantHandler) Prompt(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "image must be base64 encoded")
			return
		}
		if len(decoded) > maxImageSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "image too large (max 5MB)")
			return
		}
	}

	var opts []view.RecorderOption
	if req.APIKey != nil {
		opts = append(opts, view.WithAPIKeyInput(*req.APIKey))
	}
	rec := view.NewRecorder(opts...)

	ctx := c.Request.Context()
	clientID := middleware.ClientID(c)
	result, err := h.assistantService.SendPrompt(ctx, h.sessionService.StoreFor(clientID), rec, app.SendPromptInput{
		ClientID: clientID,
		Prompt: ai.PromptRequest{
			Text:          req.Prompt,
			ImageBase64:   req.Image,
			ImageMIMEType: req.MIMEType,
			Grounding:     req.Grounding,
		},
	})
	if err != nil {
		actions := gin.H{"actions": rec.Actions()}
		switch {
		case errors.Is(err, app.ErrNoAPIKey):
			response.ErrorWithData(c, http.StatusBadRequest, response.CodeMissingAPIKey, err.Error(), actions)
		case errors.Is(err, app.ErrRequestFailed):
			response.ErrorWithData(c, http.StatusBadGateway, response.CodeUpstreamFailed, "ai request failed", actions)
		default:
			logging.FromContext(ctx).Error("prompt failed", "client_id", clientID, "error", err)
			response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "prompt failed", actions)
		}
		return
	}

	response.OK(c, gin.H{
		"text":    result.Text,
		"html":    h.renderer.Markdown(result.Text),
		"sources": result.Sources,
		"actions": rec.Actions(),
	})
}

func (h *AssistantHandler) Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	response.OK(c, gin.H{"html": h.renderer.Markdown(req.Text)})
}
