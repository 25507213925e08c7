package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
)

// DocumentHandler serves stored uploads back by the name they were uploaded under.
type DocumentHandler struct {
	uploadDir string
}

func NewDocumentHandler(uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		uploadDir: uploadDir,
	}
}

// ServeDocument streams the newest stored copy of ?file=<name>.pdf.
func (h *DocumentHandler) ServeDocument(c *gin.Context) {
	requestedName := c.Query("file")
	if requestedName == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{Status: types.STATUS_ERROR, Message: "File parameter is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(requestedName), ".pdf") {
		c.JSON(http.StatusBadRequest, types.DataResponse{Status: types.STATUS_ERROR, Message: "Only PDF files are allowed"})
		return
	}

	actualFile, err := h.findFileWithTimestamp(utils.SanitizeFileName(requestedName))
	if err != nil {
		c.JSON(http.StatusNotFound, types.DataResponse{Status: types.STATUS_ERROR, Message: "File not found"})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(requestedName)))
	c.File(filepath.Join(h.uploadDir, actualFile))
}

// findFileWithTimestamp matches name or name_<unix timestamp>.pdf and
// prefers the latest timestamp.
func (h *DocumentHandler) findFileWithTimestamp(safeName string) (string, error) {
	files, err := os.ReadDir(h.uploadDir)
	if err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(safeName, filepath.Ext(safeName))
	best, bestTs := "", int64(-1)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}

		nameWithoutExt := strings.TrimSuffix(name, filepath.Ext(name))
		if nameWithoutExt == baseName && bestTs < 0 {
			best, bestTs = name, 0
			continue
		}
		lastUnderscoreIdx := strings.LastIndex(nameWithoutExt, "_")
		if lastUnderscoreIdx == -1 || nameWithoutExt[:lastUnderscoreIdx] != baseName {
			continue
		}

		// Unix timestamps are 10 digits in seconds, 13 in milliseconds
		timestampPart := nameWithoutExt[lastUnderscoreIdx+1:]
		if len(timestampPart) != 10 && len(timestampPart) != 13 {
			continue
		}
		ts, err := strconv.ParseInt(timestampPart, 10, 64)
		if err == nil && ts > bestTs {
			best, bestTs = name, ts
		}
	}

	if best == "" {
		return "", fmt.Errorf("file not found: %s", safeName)
	}
	return best, nil
}
