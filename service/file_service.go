package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
	"go.uber.org/zap"
)

// DocumentIngester is the part of RAGService that indexes a stored PDF.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, filePath, source string) (*types.UploadResponse, error)
}

type FileService struct {
	uploadDir string
	ingester  DocumentIngester
	logger    *zap.Logger
}

func NewFileService(uploadDir string, ingester DocumentIngester, logger *zap.Logger) *FileService {
	return &FileService{
		uploadDir: uploadDir,
		ingester:  ingester,
		logger:    logger,
	}
}

// UploadFile stores an uploaded PDF under the upload directory and ingests
// it. The source label defaults to the uploaded file name. A file that
// fails ingestion is removed again.
func (s *FileService) UploadFile(ctx context.Context, req types.UploadRequest, file *multipart.FileHeader) (*types.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return nil, fmt.Errorf("%w: unsupported file type %q", types.ErrEmptyInput, ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	destPath, err := utils.SaveWithTimestamp(src, file.Filename, s.uploadDir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("upload stored", zap.String("file", destPath))

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = filepath.Base(file.Filename)
	}
	resp, err := s.ingester.IngestDocument(ctx, destPath, source)
	if err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil {
			s.logger.Warn("failed to remove upload", zap.String("file", destPath), zap.Error(rmErr))
		}
		return nil, err
	}
	resp.OriginalName = file.Filename
	return resp, nil
}
