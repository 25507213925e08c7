package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/rag-assistant/service"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

const SERVICE_BANNER = "rag-assistant"

type RAGHandler struct {
	ragService *service.RAGService
	logger     *zap.Logger
}

func NewRAGHandler(ragService *service.RAGService, logger *zap.Logger) *RAGHandler {
	return &RAGHandler{
		ragService: ragService,
		logger:     logger,
	}
}

func (h *RAGHandler) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    SERVICE_BANNER,
		"collection": h.ragService.Collection(),
	})
}

func (h *RAGHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.ragService.Health(c.Request.Context()))
}

func (h *RAGHandler) HandleModels(c *gin.Context) {
	resp, err := h.ragService.Models(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) HandleStats(c *gin.Context) {
	resp, err := h.ragService.Stats(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) HandleAsk(c *gin.Context) {
	var req types.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendBadRequest(c, "Invalid request body")
		return
	}
	resp, err := h.ragService.Ask(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) HandleUpsert(c *gin.Context) {
	var req types.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendBadRequest(c, "Invalid request body")
		return
	}
	resp, err := h.ragService.Upsert(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) HandleDeleteBySource(c *gin.Context) {
	var req types.DeleteBySourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendBadRequest(c, "Invalid request body")
		return
	}
	resp, err := h.ragService.DeleteBySource(c.Request.Context(), req.Source)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleFulfillment answers Dialogflow-style webhooks. An empty body is a
// valid call and gets the re-prompt message.
func (h *RAGHandler) HandleFulfillment(c *gin.Context) {
	var req types.FulfillmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.sendBadRequest(c, "Invalid request body")
			return
		}
	}
	resp, err := h.ragService.Fulfillment(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RAGHandler) sendBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.DataResponse{
		Status:  types.STATUS_ERROR,
		Message: message,
	})
}

func (h *RAGHandler) sendError(c *gin.Context, err error) {
	status := StatusFromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, types.DataResponse{
		Status:  types.STATUS_ERROR,
		Message: err.Error(),
	})
}

// StatusFromError maps the error taxonomy onto HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case service.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
