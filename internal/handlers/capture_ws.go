package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stresscall/stresscall-backend/internal/services"
)

var captureUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// CaptureControlMessage is a text frame from the client; binary frames carry
// audio chunks.
type CaptureControlMessage struct {
	Type string `json:"type"` // "stop", "ping"
}

// CaptureServerMessage is what the server sends back: per-chunk levels while
// recording, then a completion or error frame.
type CaptureServerMessage struct {
	Type            string  `json:"type"` // "level", "complete", "error"
	Level           float64 `json:"level,omitempty"`
	ElapsedSeconds  float64 `json:"elapsed_seconds,omitempty"`
	Base64Data      string  `json:"base64_data,omitempty"`
	MimeType        string  `json:"mime_type,omitempty"`
	FileExtension   string  `json:"file_extension,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Message         string  `json:"message,omitempty"`
}

// CaptureWebSocket runs one live capture session. The client declares the
// recorder media type via the `mime_type` query parameter, streams binary
// audio chunks, and receives an amplitude level per chunk for the live
// visualization. The session hard-stops at the recording ceiling and
// finalizes into a base64 payload; a dropped connection abandons the session
// with no partial result.
func CaptureWebSocket(w http.ResponseWriter, r *http.Request) {
	mimeType := r.URL.Query().Get("mime_type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	session, err := services.NewCaptureSession(mimeType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := captureUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	defer session.Abandon()

	conn.SetReadLimit(int64(services.MaxRecordingBytes))
	// The ceiling plus slack: a healthy client finishes well within this.
	deadline := services.MaxRecordingDuration + 30*time.Second
	_ = conn.SetReadDeadline(time.Now().Add(deadline))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Disconnect: the session is abandoned, nothing partial emitted.
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			level, elapsed, done := session.Append(data)
			if done {
				finalizeCapture(conn, session)
				return
			}
			_ = conn.WriteJSON(CaptureServerMessage{
				Type:           "level",
				Level:          level,
				ElapsedSeconds: elapsed.Seconds(),
			})

		case websocket.TextMessage:
			var msg CaptureControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "stop":
				finalizeCapture(conn, session)
				return
			case "ping":
				_ = conn.SetReadDeadline(time.Now().Add(deadline))
			}
		}
	}
}

// finalizeCapture encodes the collected audio and sends the completion frame,
// or the distinct no-audio error when nothing was captured.
func finalizeCapture(conn *websocket.Conn, session *services.CaptureSession) {
	base64Data, mediaType, duration, err := session.Finalize()
	if err != nil {
		_ = conn.WriteJSON(CaptureServerMessage{Type: "error", Message: err.Error()})
		return
	}
	_ = conn.WriteJSON(CaptureServerMessage{
		Type:            "complete",
		Base64Data:      base64Data,
		MimeType:        mediaType,
		FileExtension:   session.FileExtension(),
		DurationSeconds: duration.Seconds(),
	})
}
