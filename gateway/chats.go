package gateway

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/pkg/llm"
	"github.com/immanlabs/gateway/pkg/store"
)

const userIDKey = "userID"

// requireUser authenticates the conversation API. The verifier is a
// collaborator; the gateway only trusts the identity it returns.
func (g *Gateway) requireUser(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "unauthorized"})
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "unauthorized"})
	}

	c.Locals(userIDKey, userID)
	return c.Next()
}

func (g *Gateway) userID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// SaveMessageRequest is the body of POST /api/chats: append a turn to an
// existing chat, or start a new one when chatId is absent.
type SaveMessageRequest struct {
	ChatID string `json:"chatId,omitempty"`
	Role   string `json:"role"`
	Text   string `json:"text"`
	Image  string `json:"image,omitempty"`
}

// RenameChatRequest is the body of PUT /api/chats/:id.
type RenameChatRequest struct {
	Title string `json:"title"`
}

func (g *Gateway) handleListChats(c *fiber.Ctx) error {
	summaries, err := g.store.List(c.Context(), g.userID(c))
	if err != nil {
		g.logger.Error("failed to list chats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Server Error"})
	}
	return c.JSON(summaries)
}

func (g *Gateway) handleGetChat(c *fiber.Ctx) error {
	chat, err := g.ownedChat(c)
	if err != nil {
		return g.chatError(c, err)
	}
	return c.JSON(chat)
}

func (g *Gateway) handleSaveMessage(c *fiber.Ctx) error {
	var req SaveMessageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Role != store.RoleUser && req.Role != store.RoleBot {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	// An empty turn is only valid when it carries an image.
	if req.Text == "" && req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	msg := store.Message{Role: req.Role, Text: req.Text, Image: req.Image}
	userID := g.userID(c)

	if req.ChatID == "" {
		chat, err := g.store.Create(c.Context(), userID, store.DeriveTitle(req.Text), msg)
		if err != nil {
			g.logger.Error("failed to create chat", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Server Error"})
		}
		return c.JSON(chat)
	}

	existing, err := g.store.Get(c.Context(), req.ChatID)
	if err != nil || existing.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "Chat not found"})
	}

	chat, err := g.store.Append(c.Context(), req.ChatID, msg)
	if err != nil {
		return g.chatError(c, err)
	}
	return c.JSON(chat)
}

func (g *Gateway) handleRenameChat(c *fiber.Ctx) error {
	var req RenameChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if _, err := g.ownedChat(c); err != nil {
		return g.chatError(c, err)
	}

	chat, err := g.store.Rename(c.Context(), c.Params("id"), req.Title)
	if err != nil {
		return g.chatError(c, err)
	}
	return c.JSON(chat)
}

func (g *Gateway) handleDeleteChat(c *fiber.Ctx) error {
	// Deleting an absent chat is fine; only another user's chat is refused.
	chat, err := g.store.Get(c.Context(), c.Params("id"))
	if err == nil && chat.UserID == g.userID(c) {
		if err := g.store.Delete(c.Context(), chat.ID); err != nil {
			g.logger.Error("failed to delete chat", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Server Error"})
		}
	}
	return c.JSON(map[string]string{"message": "Chat deleted"})
}

// ownedChat fetches the chat in :id and checks ownership. Chats owned by
// other users are indistinguishable from absent ones.
func (g *Gateway) ownedChat(c *fiber.Ctx) (*store.Chat, error) {
	chat, err := g.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if chat.UserID != g.userID(c) {
		return nil, store.ErrNotFound{ID: chat.ID}
	}
	return chat, nil
}

func (g *Gateway) chatError(c *fiber.Ctx, err error) error {
	if store.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "Chat not found"})
	}
	g.logger.Error("chat store error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Server Error"})
}
