package gateway

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/pkg/llm"
)

// UploadResponse is the body returned by POST /upload.
type UploadResponse struct {
	Message      string `json:"message"`
	URL          string `json:"url"`
	Type         string `json:"type"`
	OriginalName string `json:"originalName"`
}

// handleUpload stores a multipart upload and analyzes it: PDFs and text files
// yield their extracted text, images yield a public URL the chat client can
// hand back to the vision and edit paths.
func (g *Gateway) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "No file uploaded"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		g.logger.Error("failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "File processing failed"})
	}
	defer f.Close()

	name, err := g.uploads.Save(fileHeader.Filename, f)
	if err != nil {
		g.logger.Error("failed to store upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "File processing failed"})
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	extraction, err := g.uploads.Extract(name, mimeType, g.config.PublicBaseURL)
	if err != nil {
		g.logger.Error("failed to analyze upload",
			zap.String("file", name),
			zap.String("mime", mimeType),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "File processing failed"})
	}

	g.logger.Info("file uploaded",
		zap.String("file", name),
		zap.String("type", extraction.Kind),
		zap.Int64("size", fileHeader.Size),
	)

	return c.JSON(UploadResponse{
		Message:      "File uploaded successfully",
		URL:          extraction.Content,
		Type:         extraction.Kind,
		OriginalName: fileHeader.Filename,
	})
}
