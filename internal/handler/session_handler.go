package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/editor"
	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/gesture"
	"github.com/fleveque/promo-composer/internal/model"
)

// SessionHandler exposes interactive editor sessions: a client configures
// content once, then streams pointer events and pulls frames.
type SessionHandler struct {
	manager *editor.Manager
	logger  *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *editor.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

type configureRequest struct {
	Content model.Content `json:"content"`
	Style   model.Style   `json:"style"`
}

// pointerRequest is one pointer event in client coordinates. Viewport, when
// present, updates where the canvas is displayed before the event applies.
type pointerRequest struct {
	Type     string            `json:"type" binding:"required,oneof=down move up leave"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Viewport *gesture.Viewport `json:"viewport,omitempty"`
}

type sessionState struct {
	ID        string             `json:"id"`
	State     string             `json:"state"`
	Transform model.Transform    `json:"transform"`
	Layout    *layoutDescription `json:"layout,omitempty"`
	Handled   *bool              `json:"handled,omitempty"`
}

type layoutDescription struct {
	Format model.Format `json:"format"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Photo  model.Rect   `json:"photo"`
	Handle model.Rect   `json:"handle"`
}

// Create opens a session.
// Route: POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	id, _, err := h.manager.Create()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Configure sets content and style and starts a render. A new photo resets
// the transform.
// Route: PUT /api/v1/sessions/:id
func (h *SessionHandler) Configure(c *gin.Context) {
	surface, ok := h.surface(c)
	if !ok {
		return
	}

	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		paramError(c, h.logger, err)
		return
	}
	format, err := canonicalFormat(req.Style.Format)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	req.Style.Format = format

	if err := surface.Configure(req.Content, req.Style); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.state(c.Param("id"), surface, nil))
}

// Pointer applies one pointer event.
// Route: POST /api/v1/sessions/:id/pointer
func (h *SessionHandler) Pointer(c *gin.Context) {
	surface, ok := h.surface(c)
	if !ok {
		return
	}

	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		paramError(c, h.logger, err)
		return
	}
	if req.Viewport != nil {
		surface.SetViewport(*req.Viewport)
	}

	var handled bool
	switch req.Type {
	case "down":
		handled = surface.PointerDown(req.X, req.Y)
	case "move":
		handled = surface.PointerMove(req.X, req.Y)
	case "up":
		surface.PointerUp()
		handled = true
	case "leave":
		surface.PointerLeave()
		handled = true
	}
	c.JSON(http.StatusOK, h.state(c.Param("id"), surface, &handled))
}

// GetTransform returns the photo transform.
// Route: GET /api/v1/sessions/:id/transform
func (h *SessionHandler) GetTransform(c *gin.Context) {
	surface, ok := h.surface(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, surface.Transform())
}

// SetTransform replaces the photo transform; scale is clamped to the format's range.
// Route: PUT /api/v1/sessions/:id/transform
func (h *SessionHandler) SetTransform(c *gin.Context) {
	surface, ok := h.surface(c)
	if !ok {
		return
	}

	var t model.Transform
	if err := c.ShouldBindJSON(&t); err != nil {
		paramError(c, h.logger, err)
		return
	}
	if err := surface.SetTransform(t); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, surface.Transform())
}

// Raster returns the session's poster as an image.
// Route: GET /api/v1/sessions/:id/raster?encoding=png&view=export|editor
//
// view=export (default) renders without editing affordances. view=editor
// waits for the latest interactive frame, resize handle included.
func (h *SessionHandler) Raster(c *gin.Context) {
	surface, ok := h.surface(c)
	if !ok {
		return
	}

	enc, quality, err := encodingParams(c)
	if err != nil {
		paramError(c, h.logger, err)
		return
	}

	var data []byte
	switch view := c.DefaultQuery("view", "export"); view {
	case "export":
		data, err = surface.RasterBytes(c.Request.Context(), enc, quality)
	case "editor":
		data, err = h.editorFrame(c, surface, enc, quality)
	default:
		paramError(c, h.logger, fmt.Errorf("invalid view: %q", view))
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, enc.ContentType(), data)
}

// Delete closes a session.
// Route: DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) editorFrame(c *gin.Context, surface *editor.Surface, enc export.Encoding, quality int) ([]byte, error) {
	if err := surface.Wait(c.Request.Context()); err != nil {
		return nil, err
	}
	frame, _ := surface.Frame()
	return export.Encode(frame, enc, quality)
}

func (h *SessionHandler) surface(c *gin.Context) (*editor.Surface, bool) {
	surface, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return surface, true
}

func (h *SessionHandler) state(id string, surface *editor.Surface, handled *bool) sessionState {
	st := sessionState{
		ID:        id,
		State:     surface.GestureState().String(),
		Transform: surface.Transform(),
		Handled:   handled,
	}
	if d, err := surface.Layout(); err == nil {
		st.Layout = &layoutDescription{
			Format: d.Format,
			Width:  d.Width,
			Height: d.Height,
			Photo:  d.Photo,
			Handle: d.Handle(),
		}
	}
	return st
}

// canonicalFormat maps aliases to formats; empty means story.
func canonicalFormat(f model.Format) (model.Format, error) {
	if f == "" {
		return model.FormatStory, nil
	}
	return model.ParseFormat(string(f))
}
