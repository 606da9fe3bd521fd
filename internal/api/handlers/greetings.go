package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/greeter/internal/greet"
	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/pkg/dto"
)

type GreetingHandler struct {
	svc    *greet.Service
	fanout *notify.Fanout
}

func NewGreetingHandler(svc *greet.Service, fanout *notify.Fanout) *GreetingHandler {
	return &GreetingHandler{svc: svc, fanout: fanout}
}

func (h *GreetingHandler) Create(c *gin.Context) {
	var req dto.GreetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	g, err := h.svc.Append(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, greet.ErrNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save greeting"})
		return
	}

	h.fanout.GreetingCreated(c.Request.Context(), g)

	c.JSON(http.StatusOK, greetingResponse(g))
}

func (h *GreetingHandler) List(c *gin.Context) {
	greetings, err := h.svc.Recent(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load greetings"})
		return
	}

	resp := make([]dto.GreetingResponse, 0, len(greetings))
	for i := range greetings {
		resp = append(resp, greetingResponse(&greetings[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *GreetingHandler) Stats(c *gin.Context) {
	total, err := h.svc.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{TotalGreetings: total})
}

func greetingResponse(g *models.Greeting) dto.GreetingResponse {
	return dto.GreetingResponse{
		ID:        g.ID,
		Name:      g.Name,
		Greeting:  g.Greeting,
		Timestamp: g.Timestamp.UTC().Format(time.RFC3339),
	}
}
