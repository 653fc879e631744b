package services

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxRecordingDuration is the hard ceiling on one recording.
	MaxRecordingDuration = 60 * time.Second
	// MaxRecordingBytes bounds the decoded payload. Compressed formats have
	// no cheap duration read, so the size cap stands in for the time cap.
	MaxRecordingBytes = 10 << 20 // 10MB
)

// supportedMediaTypes mirrors the recorder's preference order.
var supportedMediaTypes = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/wav",
}

var (
	ErrNoAudioData          = errors.New("No audio data was captured. Please try recording again.")
	ErrUnsupportedMediaType = errors.New("Unsupported audio format.")
	ErrRecordingTooLarge    = errors.New("Recording is too large.")
	ErrRecordingTooLong     = fmt.Errorf("Recording exceeds the %d second limit.", int(MaxRecordingDuration.Seconds()))
)

// NormalizeMediaType validates a recorder media type against the allow-list
// and returns it with whitespace stripped. Codec parameters are compared
// case-insensitively.
func NormalizeMediaType(mediaType string) (string, error) {
	mt := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(mediaType), " ", ""))
	for _, allowed := range supportedMediaTypes {
		if mt == allowed || mt == baseMediaType(allowed) {
			return mt, nil
		}
	}
	return "", ErrUnsupportedMediaType
}

func baseMediaType(mt string) string {
	if idx := strings.Index(mt, ";"); idx != -1 {
		return mt[:idx]
	}
	return mt
}

// DecodeRecording validates and decodes a base64 audio payload. A WAV payload
// that declares a length beyond the recording ceiling is rejected here;
// compressed formats are bounded by MaxRecordingBytes instead.
func DecodeRecording(base64Data, mediaType string) ([]byte, string, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(base64Data) == "" {
		return nil, "", ErrNoAudioData
	}

	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		// Browsers may emit URL-safe base64 for data URIs.
		data, err = base64.URLEncoding.DecodeString(base64Data)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 audio payload: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", ErrNoAudioData
	}
	if len(data) > MaxRecordingBytes {
		return nil, "", ErrRecordingTooLarge
	}

	if baseMediaType(mt) == "audio/wav" {
		if d, ok := WAVDuration(data); ok && d > MaxRecordingDuration {
			return nil, "", ErrRecordingTooLong
		}
	}

	return data, mt, nil
}

// EncodeRecording encodes raw audio bytes into the transportable base64 form.
func EncodeRecording(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// SplitDataURI splits a "data:<mediatype>;base64,<data>" reference into its
// media type and base64 payload.
func SplitDataURI(uri string) (mediaType, base64Data string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", fmt.Errorf("not a data URI")
	}
	rest := uri[len("data:"):]
	comma := strings.Index(rest, ",")
	if comma == -1 {
		return "", "", fmt.Errorf("malformed data URI")
	}
	meta := rest[:comma]
	base64Data = rest[comma+1:]
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == meta {
		return "", "", fmt.Errorf("data URI is not base64 encoded")
	}
	return mediaType, base64Data, nil
}

// DataURI reassembles a self-describing reference from a payload and its
// media type.
func DataURI(base64Data, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64Data
}

// --- WAV helpers (RIFF, 16-bit PCM) ---

type wavFormat struct {
	channels      int
	sampleRate    int
	bitsPerSample int
	dataOffset    int
	dataLen       int
}

func parseWAV(data []byte) (wavFormat, bool) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavFormat{}, false
	}

	var f wavFormat
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return wavFormat{}, false
			}
			f.channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			f.bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			f.dataOffset = body
			f.dataLen = chunkLen
			if f.dataOffset+f.dataLen > len(data) {
				f.dataLen = len(data) - f.dataOffset
			}
		}
		offset = body + chunkLen
		if chunkLen%2 == 1 {
			offset++
		}
	}

	if f.sampleRate == 0 || f.channels == 0 || f.bitsPerSample == 0 || f.dataLen == 0 {
		return wavFormat{}, false
	}
	return f, true
}

// WAVDuration returns the declared duration of a WAV payload when the header
// can be read.
func WAVDuration(data []byte) (time.Duration, bool) {
	f, ok := parseWAV(data)
	if !ok {
		return 0, false
	}
	bytesPerSecond := f.sampleRate * f.channels * f.bitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0, false
	}
	seconds := float64(f.dataLen) / float64(bytesPerSecond)
	return time.Duration(seconds * float64(time.Second)), true
}

// WAVPeaks reduces a 16-bit PCM WAV payload into bucket peak amplitudes in
// [0,1] for waveform display. Returns nil when the payload is not 16-bit PCM.
func WAVPeaks(data []byte, buckets int) []float64 {
	f, ok := parseWAV(data)
	if !ok || f.bitsPerSample != 16 || buckets <= 0 {
		return nil
	}

	samples := f.dataLen / 2
	if samples == 0 {
		return nil
	}
	if buckets > samples {
		buckets = samples
	}

	peaks := make([]float64, buckets)
	perBucket := samples / buckets
	for b := 0; b < buckets; b++ {
		start := f.dataOffset + b*perBucket*2
		end := start + perBucket*2
		var peak int
		for i := start; i+1 < end && i+1 < len(data); i += 2 {
			v := int(int16(binary.LittleEndian.Uint16(data[i : i+2])))
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		peaks[b] = float64(peak) / 32768.0
	}
	return peaks
}

// ChunkLevel estimates the amplitude of one streamed chunk for the live
// visualization: RMS of 16-bit samples for PCM, a byte-energy estimate for
// compressed formats (good enough for a levels meter).
func ChunkLevel(chunk []byte, pcm bool) float64 {
	if len(chunk) == 0 {
		return 0
	}

	if pcm && len(chunk) >= 2 {
		var sum float64
		n := 0
		for i := 0; i+1 < len(chunk); i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(chunk[i : i+2]))) / 32768.0
			sum += v * v
			n++
		}
		if n == 0 {
			return 0
		}
		rms := sum / float64(n)
		if rms > 1 {
			rms = 1
		}
		return rms
	}

	// Byte deviation from the midpoint as a rough energy proxy.
	var sum float64
	for _, b := range chunk {
		d := (float64(b) - 128) / 128
		if d < 0 {
			d = -d
		}
		sum += d
	}
	level := sum / float64(len(chunk))
	if level > 1 {
		level = 1
	}
	return level
}
