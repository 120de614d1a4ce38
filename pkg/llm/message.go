// Package llm holds the wire representations for the hosted inference API:
// chat-completion requests, streamed chunks, and the mode table that selects
// the assistant's system prompt.
package llm

// Message is a single entry in a chat-completion request. Content is either a
// plain string (text chat) or an ordered list of ContentPart (vision chat).
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content any    `json:"content"` // string or []ContentPart
}

// ContentPart is one typed element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference, usually a base64 data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage builds a plain text message.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// VisionMessage builds a single user message carrying both the prompt text and
// an inlined image, in that order.
func VisionMessage(text, imageDataURI string) Message {
	return Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageDataURI}},
		},
	}
}
