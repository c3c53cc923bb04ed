package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fwk-assistant/internal/app"
	"fwk-assistant/internal/logging"
	"fwk-assistant/internal/transport/http/middleware"
	"fwk-assistant/internal/transport/http/response"
	"fwk-assistant/internal/view"
)

const LogoutPath = "/api/v1/session/logout"

type SessionHandler struct {
	sessionService *app.SessionService
}

type LoginRequest struct {
	Name       string `json:"name" binding:"required,max=64"`
	AccessCode string `json:"access_code" binding:"max=128"`
}

func NewSessionHandler(sessionService *app.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func newPageRecorder(opts ...view.RecorderOption) *view.Recorder {
	// The page drops actions for elements it does not have, so assume the
	// key input exists.
	base := []view.RecorderOption{view.WithAPIKeyInput(""), view.WithLogoutURL(LogoutPath)}
	return view.NewRecorder(append(base, opts...)...)
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ctx := c.Request.Context()
	result, err := h.sessionService.Login(ctx, app.LoginInput{
		ClientID:   middleware.ClientID(c),
		Name:       req.Name,
		AccessCode: req.AccessCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidAccessCode):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidAccessCode, err.Error())
		default:
			logging.FromContext(ctx).Error("login failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	rec := newPageRecorder()
	if _, err := h.sessionService.Check(ctx, result.ClientID, rec, h.sessionService.EntryPage()); err != nil {
		logging.FromContext(ctx).Warn("post-login check failed", "client_id", result.ClientID, "error", err)
	}

	response.OK(c, gin.H{
		"token":     result.Token,
		"client_id": result.ClientID,
		"user":      result.Session,
		"actions":   rec.Actions(),
	})
}

func (h *SessionHandler) Check(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	ctx := c.Request.Context()
	rec := newPageRecorder()

	result, err := h.sessionService.Check(ctx, middleware.ClientID(c), rec, path)
	if err != nil {
		logging.FromContext(ctx).Error("session check failed", "path", path, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session check failed")
		return
	}

	data := gin.H{
		"authenticated": result.Session != nil,
		"redirected":    result.Redirected,
		"actions":       rec.Actions(),
	}
	if result.Session != nil {
		data["user"] = result.Session
	}
	response.OK(c, data)
}

func (h *SessionHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	rec := view.NewRecorder()

	if err := h.sessionService.Logout(ctx, middleware.ClientID(c), rec); err != nil {
		logging.FromContext(ctx).Error("logout failed", "error", err)
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "logout failed",
			gin.H{"actions": rec.Actions()})
		return
	}
	response.OK(c, gin.H{"actions": rec.Actions()})
}
