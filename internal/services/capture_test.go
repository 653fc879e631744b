package services

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newCaptureForTest(t *testing.T, mediaType string, step time.Duration) *CaptureSession {
	t.Helper()
	s, err := NewCaptureSession(mediaType)
	require.NoError(t, err)
	clock := &fakeClock{t: fixedTime(), step: step}
	s.now = clock.Now
	s.started = clock.Now()
	return s
}

func TestNewCaptureSession_RejectsUnsupportedType(t *testing.T) {
	_, err := NewCaptureSession("video/avi")
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestCaptureSession_AppendReportsLevels(t *testing.T) {
	s := newCaptureForTest(t, "audio/webm", time.Second)

	level, elapsed, done := s.Append([]byte{0, 255, 0, 255})
	assert.False(t, done)
	assert.Greater(t, level, 0.0)
	assert.Greater(t, elapsed, time.Duration(0))
}

func TestCaptureSession_HardStopAtDurationCeiling(t *testing.T) {
	// Each Append advances the clock by 10 seconds.
	s := newCaptureForTest(t, "audio/webm", 10*time.Second)

	done := false
	appends := 0
	for !done && appends < 100 {
		_, _, done = s.Append([]byte{1, 2, 3, 4})
		appends++
	}
	require.True(t, done)
	assert.LessOrEqual(t, appends, 7, "ceiling must trip near the 60 second mark")

	base64Data, mediaType, duration, err := s.Finalize()
	require.NoError(t, err)
	assert.NotEmpty(t, base64Data)
	assert.Equal(t, "audio/webm", mediaType)
	assert.LessOrEqual(t, duration, MaxRecordingDuration)
}

func TestCaptureSession_ChunksAfterCeilingDropped(t *testing.T) {
	s := newCaptureForTest(t, "audio/webm", 61*time.Second)

	_, _, done := s.Append([]byte{1, 2})
	require.True(t, done)

	// Nothing was buffered past the ceiling.
	_, _, _, err := s.Finalize()
	assert.ErrorIs(t, err, ErrNoAudioData)
}

func TestCaptureSession_FinalizeEmptyIsNoAudio(t *testing.T) {
	s := newCaptureForTest(t, "audio/webm", time.Millisecond)

	_, _, _, err := s.Finalize()
	assert.ErrorIs(t, err, ErrNoAudioData)
}

func TestCaptureSession_FinalizeRoundTrip(t *testing.T) {
	s := newCaptureForTest(t, "audio/webm;codecs=opus", time.Second)

	chunk1 := []byte{1, 2, 3}
	chunk2 := []byte{4, 5, 6}
	s.Append(chunk1)
	s.Append(chunk2)

	base64Data, mediaType, duration, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "audio/webm;codecs=opus", mediaType)
	assert.Greater(t, duration, time.Duration(0))

	decoded, err := base64.StdEncoding.DecodeString(base64Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, decoded)
}

func TestCaptureSession_AbandonDiscardsEverything(t *testing.T) {
	s := newCaptureForTest(t, "audio/webm", time.Second)
	s.Append([]byte{1, 2, 3})
	s.Abandon()

	_, _, done := s.Append([]byte{4, 5, 6})
	assert.True(t, done, "appends after abandon are dropped")

	_, _, _, err := s.Finalize()
	assert.ErrorIs(t, err, ErrNoAudioData)
}

func TestCaptureSession_FileExtension(t *testing.T) {
	cases := map[string]string{
		"audio/webm;codecs=opus": "webm",
		"audio/ogg;codecs=opus":  "ogg",
		"audio/mp4":              "m4a",
		"audio/wav":              "wav",
	}
	for mediaType, want := range cases {
		s, err := NewCaptureSession(mediaType)
		require.NoError(t, err)
		assert.Equal(t, want, s.FileExtension())
	}
}
