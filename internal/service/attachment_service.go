package service

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
)

// AttachmentService resolves an opaque attachment reference (a file
// path) into the mimetype and pixel dimensions included with a dispatch.
type AttachmentService struct{}

// NewAttachmentService creates a new attachment service
func NewAttachmentService() *AttachmentService {
	return &AttachmentService{}
}

// Resolve reads the referenced image. Only the header is decoded, never
// the full pixel data.
func (s *AttachmentService) Resolve(ref string) (*models.Attachment, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %q: %w", ref, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment %q: %w", ref, err)
	}

	return &models.Attachment{
		Ref:      ref,
		Mimetype: http.DetectContentType(data),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
