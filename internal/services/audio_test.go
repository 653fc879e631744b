package services

import (
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal RIFF/WAVE payload: mono 16-bit PCM at the
// given sample rate, with the provided samples.
func buildWAV(sampleRate int, samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}

func TestNormalizeMediaType(t *testing.T) {
	mt, err := NormalizeMediaType("audio/webm;codecs=opus")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm;codecs=opus", mt)

	// Base types without codec parameters are accepted too.
	mt, err = NormalizeMediaType("audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", mt)

	mt, err = NormalizeMediaType(" Audio/WAV ")
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", mt)

	_, err = NormalizeMediaType("video/mp4")
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)

	_, err = NormalizeMediaType("")
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestDecodeRecording_RoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	decoded, mt, err := DecodeRecording(EncodeRecording(raw), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
	assert.Equal(t, "audio/webm", mt)
}

func TestDecodeRecording_EmptyPayload(t *testing.T) {
	_, _, err := DecodeRecording("", "audio/webm")
	assert.ErrorIs(t, err, ErrNoAudioData)

	_, _, err = DecodeRecording(base64.StdEncoding.EncodeToString(nil), "audio/webm")
	assert.ErrorIs(t, err, ErrNoAudioData)
}

func TestDecodeRecording_InvalidBase64(t *testing.T) {
	_, _, err := DecodeRecording("!!not base64!!", "audio/webm")
	assert.Error(t, err)
}

func TestDecodeRecording_URLSafeBase64Accepted(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xfe}
	decoded, _, err := DecodeRecording(base64.URLEncoding.EncodeToString(raw), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDecodeRecording_RejectsOverlongWAV(t *testing.T) {
	// 61 seconds of mono 16-bit audio at 8kHz.
	samples := make([]int16, 8000*61)
	wav := buildWAV(8000, samples)

	_, _, err := DecodeRecording(EncodeRecording(wav), "audio/wav")
	assert.ErrorIs(t, err, ErrRecordingTooLong)
}

func TestDecodeRecording_AcceptsShortWAV(t *testing.T) {
	wav := buildWAV(8000, make([]int16, 8000*2)) // 2 seconds

	_, mt, err := DecodeRecording(EncodeRecording(wav), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", mt)
}

func TestSplitDataURI(t *testing.T) {
	mt, data, err := SplitDataURI("data:audio/webm;codecs=opus;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm;codecs=opus", mt)
	assert.Equal(t, "QUJD", data)

	_, _, err = SplitDataURI("audio/webm;base64,QUJD")
	assert.Error(t, err, "missing data: prefix")

	_, _, err = SplitDataURI("data:audio/webm,QUJD")
	assert.Error(t, err, "not base64 encoded")

	_, _, err = SplitDataURI("data:audio/webm;base64")
	assert.Error(t, err, "no comma")
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("QUJD", "audio/webm")
	mt, data, err := SplitDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "audio/webm", mt)
	assert.Equal(t, "QUJD", data)
}

func TestWAVDuration(t *testing.T) {
	wav := buildWAV(8000, make([]int16, 8000*3))
	d, ok := WAVDuration(wav)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = WAVDuration([]byte("definitely not a wav file"))
	assert.False(t, ok)
}

func TestWAVPeaks(t *testing.T) {
	samples := make([]int16, 400)
	for i := 200; i < 400; i++ {
		samples[i] = 16384 // half amplitude in the second half
	}
	wav := buildWAV(8000, samples)

	peaks := WAVPeaks(wav, 2)
	require.Len(t, peaks, 2)
	assert.Equal(t, 0.0, peaks[0])
	assert.InDelta(t, 0.5, peaks[1], 0.01)

	assert.Nil(t, WAVPeaks([]byte("not audio"), 2))
	assert.Nil(t, WAVPeaks(wav, 0))
}

func TestChunkLevel(t *testing.T) {
	assert.Equal(t, 0.0, ChunkLevel(nil, true))

	// Constant full-scale PCM has RMS ~1.
	loud := make([]byte, 64)
	for i := 0; i+1 < len(loud); i += 2 {
		binary.LittleEndian.PutUint16(loud[i:i+2], uint16(int16(32000)))
	}
	level := ChunkLevel(loud, true)
	assert.Greater(t, level, 0.9)

	silent := make([]byte, 64)
	assert.Equal(t, 0.0, ChunkLevel(silent, true))

	// Compressed chunks still yield a non-zero estimate for varied bytes.
	varied := []byte{0, 255, 0, 255, 10, 240}
	assert.Greater(t, ChunkLevel(varied, false), 0.0)
}
