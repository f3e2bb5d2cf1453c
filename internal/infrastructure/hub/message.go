package hub

import (
	"encoding/json"
	"time"
)

// Envelope types exchanged over a channel. Content payloads are opaque to the
// hub; only the envelope frame itself is interpreted.
const (
	// Server -> listeners.
	TypeStreamContent = "stream_content"
	TypeStreamInfo    = "stream_info"

	// Server -> broadcaster.
	TypeSystemInfo   = "system_info"
	TypeViewerUpdate = "viewer_update"
	TypeBotReaction  = "bot_reaction"

	// Listener -> server.
	TypeHeartbeat = "heartbeat"
	TypeReaction  = "reaction"
)

// Envelope is the wire frame for every server-originated message. Unused
// fields are omitted per type.
type Envelope struct {
	Type       string         `json:"type"`
	Content    string         `json:"content,omitempty"`
	Message    string         `json:"message,omitempty"`
	Event      string         `json:"event,omitempty"`
	Count      int            `json:"count,omitempty"`
	BotInfo    map[string]any `json:"bot_info,omitempty"`
	StreamInfo *StreamInfo    `json:"stream_info,omitempty"`
	Timestamp  float64        `json:"timestamp"`
}

// StreamInfo summarizes the live stream for listeners.
type StreamInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Viewers  int     `json:"viewers"`
}

// inboundFrame is what clients send: broadcasters produce content with
// optional metadata, listeners produce heartbeats and reactions.
type inboundFrame struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	BotInfo  map[string]any `json:"bot_info"`
}

// decodeBroadcastFrame extracts content and an optional stream title from a
// raw broadcaster message. Plain text that is not a JSON frame is treated as
// content verbatim.
func decodeBroadcastFrame(data []byte) (content, title string) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Content == "" {
		return string(data), ""
	}
	if t, ok := frame.Metadata["stream_title"].(string); ok {
		title = t
	}
	return frame.Content, title
}

func newStreamContent(content string, info *StreamInfo) *Envelope {
	return &Envelope{
		Type:       TypeStreamContent,
		Content:    content,
		StreamInfo: info,
		Timestamp:  unixSeconds(),
	}
}

func newStreamInfo(info *StreamInfo) *Envelope {
	return &Envelope{
		Type:       TypeStreamInfo,
		StreamInfo: info,
		Timestamp:  unixSeconds(),
	}
}

func newSystemInfo(message string) *Envelope {
	return &Envelope{
		Type:      TypeSystemInfo,
		Message:   message,
		Timestamp: unixSeconds(),
	}
}

func newViewerUpdate(event string, count int) *Envelope {
	return &Envelope{
		Type:      TypeViewerUpdate,
		Event:     event,
		Count:     count,
		Timestamp: unixSeconds(),
	}
}

func newBotReaction(content string, botInfo map[string]any) *Envelope {
	return &Envelope{
		Type:      TypeBotReaction,
		Content:   content,
		BotInfo:   botInfo,
		Timestamp: unixSeconds(),
	}
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
