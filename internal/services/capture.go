package services

import (
	"bytes"
	"encoding/base64"
	"strings"
	"time"
)

// CaptureSession accumulates one live recording streamed chunk by chunk.
// It enforces the hard duration ceiling on the session wall clock, reports a
// per-chunk amplitude level for the visualization, and finalizes into a
// base64 payload plus media type. A session that is abandoned (connection
// drop, teardown) emits nothing partial: the buffer is simply discarded.
type CaptureSession struct {
	mediaType string
	pcm       bool
	buf       bytes.Buffer
	started   time.Time
	finished  bool
	now       func() time.Time
}

// NewCaptureSession starts a session for the given recorder media type.
func NewCaptureSession(mediaType string) (*CaptureSession, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	s := &CaptureSession{
		mediaType: mt,
		pcm:       baseMediaType(mt) == "audio/wav",
		now:       time.Now,
	}
	s.started = s.now()
	return s, nil
}

// Elapsed returns how long the session has been recording.
func (s *CaptureSession) Elapsed() time.Duration {
	return s.now().Sub(s.started)
}

// Append adds one streamed chunk. It returns the chunk's amplitude level,
// the elapsed recording time, and whether the hard duration ceiling has been
// reached (the caller must then finalize). Chunks after the ceiling or after
// finalization are dropped.
func (s *CaptureSession) Append(chunk []byte) (level float64, elapsed time.Duration, done bool) {
	elapsed = s.Elapsed()
	if s.finished || elapsed >= MaxRecordingDuration {
		return 0, elapsed, true
	}
	if s.buf.Len()+len(chunk) > MaxRecordingBytes {
		return 0, elapsed, true
	}
	s.buf.Write(chunk)
	return ChunkLevel(chunk, s.pcm), elapsed, elapsed >= MaxRecordingDuration
}

// Finalize encodes the collected audio into a transportable payload.
// A session with no collected bytes yields ErrNoAudioData, never an empty
// success.
func (s *CaptureSession) Finalize() (base64Data, mediaType string, duration time.Duration, err error) {
	s.finished = true
	if s.buf.Len() == 0 {
		return "", "", 0, ErrNoAudioData
	}
	duration = s.Elapsed()
	if duration > MaxRecordingDuration {
		duration = MaxRecordingDuration
	}
	return base64.StdEncoding.EncodeToString(s.buf.Bytes()), s.mediaType, duration, nil
}

// Abandon discards the session without emitting a result. Safe to call after
// Finalize; it is then a no-op.
func (s *CaptureSession) Abandon() {
	s.finished = true
	s.buf.Reset()
}

// FileExtension maps the session media type to an archive filename extension.
func (s *CaptureSession) FileExtension() string {
	switch baseMediaType(s.mediaType) {
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	case "audio/wav":
		return "wav"
	}
	if idx := strings.Index(s.mediaType, "/"); idx != -1 {
		return s.mediaType[idx+1:]
	}
	return "bin"
}
