package services

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// RecordingArchive stores raw recordings in Cloudinary so a report can link
// back to the audio that produced it. Archival is best effort: the stress
// check never fails because the archive write did.
type RecordingArchive struct {
	cld *cloudinary.Cloudinary
}

func NewRecordingArchive(cloudName, apiKey, apiSecret string) (*RecordingArchive, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &RecordingArchive{cld: cld}, nil
}

// Upload stores the recording bytes and returns the secure URL.
func (a *RecordingArchive) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	uploadResult, err := a.cld.Upload.Upload(ctx, data, uploader.UploadParams{
		Folder: "stresscall/recordings",
		// Cloudinary files audio under the video resource type.
		ResourceType: "video",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload recording: %w", err)
	}
	return uploadResult.SecureURL, nil
}
