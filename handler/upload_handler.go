package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/rag-assistant/service"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

const MAX_UPLOAD_SIZE = 50 << 20

type UploadHandler struct {
	fileService *service.FileService
	logger      *zap.Logger
}

func NewUploadHandler(fileService *service.FileService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		fileService: fileService,
		logger:      logger,
	}
}

// UploadDocumentHandler accepts a multipart "file" field holding a PDF and an
// optional "source" field.
func (h *UploadHandler) UploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  types.STATUS_ERROR,
			Message: "Invalid file",
		})
		return
	}
	if header.Size > MAX_UPLOAD_SIZE {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  types.STATUS_ERROR,
			Message: "File too large",
		})
		return
	}

	var req types.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  types.STATUS_ERROR,
			Message: "Invalid form",
		})
		return
	}

	resp, err := h.fileService.UploadFile(c.Request.Context(), req, header)
	if err != nil {
		status := StatusFromError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("upload failed", zap.String("file", header.Filename), zap.Error(err))
		}
		c.JSON(status, types.DataResponse{
			Status:  types.STATUS_ERROR,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: types.STATUS_OK,
		Data:   resp,
	})
}
