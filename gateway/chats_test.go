package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immanlabs/gateway/pkg/store"
)

func authed(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestChatsAPIRequiresAuth(t *testing.T) {
	g := testGateway(t, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/api/chats", nil),
		authed(httptest.NewRequest("GET", "/api/chats", nil), "not-a-token"),
	} {
		resp, err := g.server.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	}
}

func TestSaveMessageCreatesChatWithDerivedTitle(t *testing.T) {
	g := testGateway(t, nil)

	long := "This opening message is much longer than thirty characters."
	req := authed(jsonRequest(t, "POST", "/api/chats", SaveMessageRequest{
		Role: store.RoleUser,
		Text: long,
	}), "tok-alice")
	resp, err := g.server.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var chat store.Chat
	decodeJSON(t, resp.Body, &chat)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "alice", chat.UserID)
	assert.Equal(t, long[:30]+"...", chat.Title)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, long, chat.Messages[0].Text)
}

func TestSaveMessageAppendsToExistingChat(t *testing.T) {
	g := testGateway(t, nil)

	chat, err := g.store.Create(context.Background(), "alice", "t", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	req := authed(jsonRequest(t, "POST", "/api/chats", SaveMessageRequest{
		ChatID: chat.ID,
		Role:   store.RoleBot,
		Text:   "hello back",
	}), "tok-alice")
	resp, err := g.server.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var updated store.Chat
	decodeJSON(t, resp.Body, &updated)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, store.RoleBot, updated.Messages[1].Role)
}

func TestSaveMessageAcceptsImageOnlyTurn(t *testing.T) {
	g := testGateway(t, nil)

	req := authed(jsonRequest(t, "POST", "/api/chats", SaveMessageRequest{
		Role:  store.RoleBot,
		Image: "data:image/png;base64,aGk=",
	}), "tok-alice")
	resp, err := g.server.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSaveMessageValidation(t *testing.T) {
	g := testGateway(t, nil)

	bad := []SaveMessageRequest{
		{Role: "assistant", Text: "wrong role"},
		{Role: store.RoleUser}, // no text, no image
	}
	for _, payload := range bad {
		resp, err := g.server.Test(authed(jsonRequest(t, "POST", "/api/chats", payload), "tok-alice"))
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	}
}

func TestSaveMessageToAnotherUsersChatIs404(t *testing.T) {
	g := testGateway(t, nil)

	chat, err := g.store.Create(context.Background(), "alice", "t", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	req := authed(jsonRequest(t, "POST", "/api/chats", SaveMessageRequest{
		ChatID: chat.ID,
		Role:   store.RoleUser,
		Text:   "intruding",
	}), "tok-bob")
	resp, err := g.server.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestListChatsIsOwnerScoped(t *testing.T) {
	g := testGateway(t, nil)
	ctx := context.Background()

	_, err := g.store.Create(ctx, "alice", "a", store.Message{Role: store.RoleUser, Text: "x"})
	require.NoError(t, err)
	_, err = g.store.Create(ctx, "bob", "b", store.Message{Role: store.RoleUser, Text: "y"})
	require.NoError(t, err)

	resp, err := g.server.Test(authed(httptest.NewRequest("GET", "/api/chats", nil), "tok-alice"))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var summaries []store.Summary
	decodeJSON(t, resp.Body, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "a", summaries[0].Title)
}

func TestGetChatOwnershipAndNotFound(t *testing.T) {
	g := testGateway(t, nil)

	chat, err := g.store.Create(context.Background(), "alice", "t", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	resp, err := g.server.Test(authed(httptest.NewRequest("GET", "/api/chats/"+chat.ID, nil), "tok-alice"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// Another user's chat looks exactly like a missing one.
	resp, err = g.server.Test(authed(httptest.NewRequest("GET", "/api/chats/"+chat.ID, nil), "tok-bob"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = g.server.Test(authed(httptest.NewRequest("GET", "/api/chats/absent", nil), "tok-alice"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestRenameChat(t *testing.T) {
	g := testGateway(t, nil)

	chat, err := g.store.Create(context.Background(), "alice", "old", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	req := authed(jsonRequest(t, "PUT", "/api/chats/"+chat.ID, RenameChatRequest{Title: "renamed"}), "tok-alice")
	resp, err := g.server.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var updated store.Chat
	decodeJSON(t, resp.Body, &updated)
	assert.Equal(t, "renamed", updated.Title)

	req = authed(jsonRequest(t, "PUT", "/api/chats/absent", RenameChatRequest{Title: "x"}), "tok-alice")
	resp, err = g.server.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDeleteChat(t *testing.T) {
	g := testGateway(t, nil)
	ctx := context.Background()

	chat, err := g.store.Create(ctx, "alice", "t", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	resp, err := g.server.Test(authed(httptest.NewRequest("DELETE", "/api/chats/"+chat.ID, nil), "tok-alice"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	_, err = g.store.Get(ctx, chat.ID)
	assert.True(t, store.IsNotFound(err))

	// Deleting an already-absent chat still reports success.
	resp, err = g.server.Test(authed(httptest.NewRequest("DELETE", "/api/chats/"+chat.ID, nil), "tok-alice"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestDeleteChatDoesNotTouchOtherUsers(t *testing.T) {
	g := testGateway(t, nil)
	ctx := context.Background()

	chat, err := g.store.Create(ctx, "alice", "t", store.Message{Role: store.RoleUser, Text: "hi"})
	require.NoError(t, err)

	resp, err := g.server.Test(authed(httptest.NewRequest("DELETE", "/api/chats/"+chat.ID, nil), "tok-bob"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// Still there for its owner.
	_, err = g.store.Get(ctx, chat.ID)
	assert.NoError(t, err)
}
