package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/greeter/internal/greet"
	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/internal/recognize"
	"github.com/your-org/greeter/internal/storage"
	"github.com/your-org/greeter/pkg/dto"
)

// VisitorDirectory is the identity-store surface the visitor endpoints need.
type VisitorDirectory interface {
	GetVisitor(ctx context.Context, id int64) (*models.Visitor, error)
	ListVisitors(ctx context.Context, limit int) ([]models.Visitor, error)
	SetVisitorName(ctx context.Context, id int64, name string) error
}

// ImageGetter fetches stored visitor images by object key.
type ImageGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type VisitorHandler struct {
	workflow *recognize.Workflow
	store    VisitorDirectory
	images   ImageGetter
	fanout   *notify.Fanout
}

func NewVisitorHandler(workflow *recognize.Workflow, store VisitorDirectory, images ImageGetter, fanout *notify.Fanout) *VisitorHandler {
	return &VisitorHandler{workflow: workflow, store: store, images: images, fanout: fanout}
}

// Upload accepts a multipart visitor image and runs the reconciliation
// workflow against it.
func (h *VisitorHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	defer file.Close()

	if header.Size > recognize.MaxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": recognize.ErrImageTooLarge.Error()})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, recognize.MaxImageSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	robotID := c.DefaultPostForm("robotId", "unknown")
	contentType := header.Header.Get("Content-Type")

	outcome, err := h.workflow.Process(c.Request.Context(), robotID, header.Filename, contentType, data)
	if err != nil {
		switch {
		case errors.Is(err, recognize.ErrNoFace):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in image"})
		case errors.Is(err, recognize.ErrImageTooLarge), errors.Is(err, recognize.ErrNotImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process visitor image"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		Success:     true,
		Visitor:     visitorResponse(outcome.Visitor),
		IsReturning: outcome.IsReturning,
		Confidence:  outcome.Confidence,
	})
}

// Get returns a single visitor record.
func (h *VisitorHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	v, err := h.store.GetVisitor(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load visitor"})
		return
	}

	c.JSON(http.StatusOK, visitorResponse(v))
}

// Image serves the visitor's most recent stored image.
func (h *VisitorHandler) Image(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	v, err := h.store.GetVisitor(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load visitor"})
		return
	}

	data, err := h.images.Get(c.Request.Context(), v.ImagePath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "visitor image not found"})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *VisitorHandler) List(c *gin.Context) {
	visitors, err := h.store.ListVisitors(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load visitors"})
		return
	}

	resp := make([]dto.VisitorResponse, 0, len(visitors))
	for i := range visitors {
		resp = append(resp, visitorResponse(&visitors[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// Identify assigns a human-provided name to a visitor record.
func (h *VisitorHandler) Identify(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	name := greet.Sanitize(req.Name, greet.MaxVisitorNameLen)

	if err := h.store.SetVisitorName(c.Request.Context(), id, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update visitor"})
		return
	}

	h.fanout.VisitorIdentified(c.Request.Context(), id, name)

	c.JSON(http.StatusOK, dto.IdentifyResponse{Success: true, Name: name})
}

func visitorResponse(v *models.Visitor) dto.VisitorResponse {
	return dto.VisitorResponse{
		ID:         v.ID,
		Name:       v.Name,
		LastSeen:   v.LastSeen.UTC().Format(time.RFC3339),
		VisitCount: v.VisitCount,
	}
}
