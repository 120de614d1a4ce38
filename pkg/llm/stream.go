package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// doneSentinel terminates an SSE completion stream.
const doneSentinel = "[DONE]"

// StreamChunk is the JSON payload of one SSE frame from the chat-completions
// endpoint. Only the delta content is of interest; everything else passes
// through the relay untouched.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Accumulator reconstructs the full assistant answer from raw SSE bytes. It
// is fed the same byte slices the relay forwards to the client, in arrival
// order, and tolerates frames split across writes. It is not safe for
// concurrent use; each relayed stream owns its own Accumulator.
type Accumulator struct {
	buf     bytes.Buffer
	content strings.Builder
	done    bool
}

// Write consumes a chunk of the upstream byte stream. It never fails;
// unparseable frames are skipped so the passthrough contract is unaffected.
func (a *Accumulator) Write(p []byte) (int, error) {
	a.buf.Write(p)
	for {
		line, err := a.buf.ReadString('\n')
		if err != nil {
			// Partial line: keep it for the next write.
			a.buf.WriteString(line)
			break
		}
		a.consumeLine(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (a *Accumulator) consumeLine(line string) {
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return
	}
	payload = strings.TrimSpace(payload)
	if payload == doneSentinel {
		a.done = true
		return
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return
	}
	for _, choice := range chunk.Choices {
		a.content.WriteString(choice.Delta.Content)
	}
}

// Content returns the concatenated assistant answer seen so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Done reports whether the terminating sentinel frame was seen.
func (a *Accumulator) Done() bool {
	return a.done
}
