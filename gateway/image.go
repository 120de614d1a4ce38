package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/pkg/llm"
)

// qualitySuffix is appended to every generation prompt.
const qualitySuffix = ", high quality, realistic"

// ImageRequest is the body of POST /image.
type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// EditImageRequest is the body of POST /edit-image. Image is the public URL
// of a previously uploaded file.
type EditImageRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

// ImageResponse carries a generated or edited image as a data URI.
type ImageResponse struct {
	Image string `json:"image"`
}

// handleGenerateImage forwards a text-to-image request and returns the PNG
// bytes as a data URI. Failures are reported in-band at HTTP 200; the client
// contract is "parse the JSON, check for an error key".
func (g *Gateway) handleGenerateImage(c *fiber.Ctx) error {
	var req ImageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		g.logger.Error("failed to parse image request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	body, err := json.Marshal(llm.GenerationRequest{Inputs: req.Prompt + qualitySuffix})
	if err != nil {
		return c.JSON(llm.ErrorResponse{Error: "Image generation failed."})
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), http.MethodPost,
		g.config.modelURL(g.config.ImageModel), bytes.NewReader(body))
	if err != nil {
		g.logger.Error("failed to create generation request", zap.Error(err))
		return c.JSON(llm.ErrorResponse{Error: "Image generation failed."})
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.config.Token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	png, err := g.fetchBinary(httpReq)
	if err != nil {
		g.logger.Error("image generation failed", zap.Error(err))
		return c.JSON(llm.ErrorResponse{Error: "Image generation failed."})
	}

	g.logger.Info("image generated",
		zap.String("prompt", truncate(req.Prompt, 80)),
		zap.Int("bytes", len(png)),
	)

	return c.JSON(ImageResponse{Image: pngDataURI(png)})
}

// handleEditImage sends a stored upload through an image-to-image model with
// the edit instruction as a query parameter. Unlike the vision-chat path, a
// missing source file fails fast with HTTP 400 before any upstream call.
func (g *Gateway) handleEditImage(c *fiber.Ctx) error {
	var req EditImageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		g.logger.Error("failed to parse edit request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	name, ok := g.uploads.Resolve(req.Image)
	if !ok || !g.uploads.Exists(name) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Image file not found."})
	}

	source, err := g.uploads.ReadFile(name)
	if err != nil {
		g.logger.Error("failed to read source image", zap.String("file", name), zap.Error(err))
		return c.JSON(llm.ErrorResponse{Error: "Image editing failed. Try a simpler instruction."})
	}

	editURL, err := url.Parse(g.config.modelURL(g.config.EditModel))
	if err != nil {
		return c.JSON(llm.ErrorResponse{Error: "Image editing failed. Try a simpler instruction."})
	}
	query := editURL.Query()
	query.Set("inputs", req.Prompt)
	editURL.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(c.Context(), http.MethodPost,
		editURL.String(), bytes.NewReader(source))
	if err != nil {
		g.logger.Error("failed to create edit request", zap.Error(err))
		return c.JSON(llm.ErrorResponse{Error: "Image editing failed. Try a simpler instruction."})
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.config.Token)
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("x-use-cache", "false")

	png, err := g.fetchBinary(httpReq)
	if err != nil {
		g.logger.Error("image edit failed", zap.Error(err))
		return c.JSON(llm.ErrorResponse{Error: "Image editing failed. Try a simpler instruction."})
	}

	g.logger.Info("image edited",
		zap.String("file", name),
		zap.String("prompt", truncate(req.Prompt, 80)),
		zap.Int("bytes", len(png)),
	)

	return c.JSON(ImageResponse{Image: pngDataURI(png)})
}

type upstreamError struct {
	status int
	body   string
}

func (e upstreamError) Error() string {
	return "upstream returned " + http.StatusText(e.status) + ": " + e.body
}

// fetchBinary performs a buffered upstream call and returns the whole body.
func (g *Gateway) fetchBinary(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError{status: resp.StatusCode, body: truncate(string(body), 200)}
	}

	g.logger.Debug("binary upstream call completed",
		zap.String("url", req.URL.String()),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}

func pngDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
