package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/pkg/llm"
	"github.com/immanlabs/gateway/pkg/store"
)

// historyWindow is the number of stored turns carried into the upstream
// request. Older turns are dropped, not summarized.
const historyWindow = 10

// maxCompletionTokens bounds every chat completion.
const maxCompletionTokens = 1000

// chatErrorMessage is the single in-band error the streaming path reports.
const chatErrorMessage = "Service busy or Vision not supported. Try text only."

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message     string `json:"message"`
	Mode        string `json:"mode"`
	ChatID      string `json:"chatId,omitempty"`
	Image       string `json:"image,omitempty"`
	CustomRules string `json:"customRules,omitempty"`
}

// handleChat classifies the request (vision vs. text), assembles the upstream
// message list, and relays the completion stream back to the caller.
func (g *Gateway) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		g.logger.Error("failed to parse chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	g.logger.Debug("received chat request",
		zap.String("mode", req.Mode),
		zap.String("chat_id", req.ChatID),
		zap.Bool("has_image", req.Image != ""),
	)

	model, messages := g.classify(c.Context(), &req)

	return g.relayCompletion(c, model, messages)
}

// classify picks the upstream request shape. An attached image selects vision
// chat with the image inlined; a missing or unreadable image file degrades
// silently to text chat, it never fails the request.
func (g *Gateway) classify(ctx context.Context, req *ChatRequest) (string, []llm.Message) {
	if req.Image != "" {
		if name, ok := g.uploads.Resolve(req.Image); ok && g.uploads.Exists(name) {
			dataURI, err := g.uploads.DataURI(name, "image/jpeg")
			if err == nil {
				return g.config.VisionModel, []llm.Message{llm.VisionMessage(req.Message, dataURI)}
			}
			g.logger.Warn("failed to inline image, falling back to text chat",
				zap.String("file", name), zap.Error(err))
		} else {
			g.logger.Warn("image upload not found, falling back to text chat",
				zap.String("image", req.Image))
		}
	}

	system := llm.SystemPrompt(llm.Mode(req.Mode), req.CustomRules)
	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.TextMessage("system", system))
	messages = append(messages, g.history(ctx, req.ChatID)...)
	messages = append(messages, llm.TextMessage("user", req.Message))

	return g.config.TextModel, messages
}

// history loads the most recent turns of a stored conversation and renders
// them as upstream messages. History is best-effort: any fetch failure means
// an empty window, never an error to the caller.
func (g *Gateway) history(ctx context.Context, chatID string) []llm.Message {
	if chatID == "" {
		return nil
	}

	chat, err := g.store.Get(ctx, chatID)
	if err != nil {
		g.logger.Debug("chat history unavailable", zap.String("chat_id", chatID), zap.Error(err))
		return nil
	}

	turns := chat.Messages
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == store.RoleBot {
			role = "assistant"
		}
		messages = append(messages, llm.TextMessage(role, turn.Text))
	}
	return messages
}

// relayCompletion issues the upstream streaming call and pipes the SSE bytes
// back unmodified. The response is committed as an event stream up front, so
// every failure afterwards is reported as a single in-band error frame at
// HTTP 200, never as an error status.
func (g *Gateway) relayCompletion(c *fiber.Ctx, model string, messages []llm.Message) error {
	body, err := json.Marshal(llm.CompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxCompletionTokens,
		Stream:    true,
	})
	if err != nil {
		g.logger.Error("failed to marshal completion request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	upstreamURL := g.config.completionsURL()
	logger := g.logger
	client := g.httpClient
	token := g.config.Token
	startTime := time.Now()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The writer owns the upstream call so the caller's connection is
		// already committed; cancellation covers caller disconnects.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(body))
		if err != nil {
			logger.Error("failed to create upstream request", zap.Error(err))
			writeSSEError(w, chatErrorMessage)
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			logger.Error("upstream request failed", zap.Error(err))
			writeSSEError(w, chatErrorMessage)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errBody, _ := io.ReadAll(resp.Body)
			logger.Error("upstream returned error",
				zap.Int("status", resp.StatusCode),
				zap.String("body", truncate(string(errBody), 200)),
			)
			writeSSEError(w, chatErrorMessage)
			return
		}

		// Byte-for-byte passthrough. The accumulator sees the same bytes so
		// the full answer can be logged when the stream ends; the relay never
		// rewrites a frame.
		var acc llm.Accumulator
		buf := make([]byte, 4096)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				if _, werr := w.Write(buf[:n]); werr != nil {
					logger.Debug("caller disconnected mid-stream", zap.Error(werr))
					return
				}
				if werr := w.Flush(); werr != nil {
					logger.Debug("caller disconnected mid-stream", zap.Error(werr))
					return
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				logger.Error("error reading upstream stream", zap.Error(rerr))
				writeSSEError(w, chatErrorMessage)
				return
			}
		}

		logger.Info("completion stream relayed",
			zap.String("model", model),
			zap.Bool("done", acc.Done()),
			zap.String("content_preview", truncate(acc.Content(), 100)),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// writeSSEError emits one terminal error frame on an already-committed
// event stream.
func writeSSEError(w *bufio.Writer, message string) {
	data, err := json.Marshal(llm.ErrorResponse{Error: message})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
