package handlers

import (
	"log"

	"github.com/stresscall/stresscall-backend/internal/config"
	"github.com/stresscall/stresscall-backend/internal/services"
)

var (
	profileService   *services.ProfileService
	quotaService     *services.QuotaService
	reportSelector   *services.ReportSelector
	analysisService  *services.AnalysisService
	recordingArchive *services.RecordingArchive
	billingConfig    *config.Config
)

// InitServices wires the handler package's service instances. Called once
// from main after the data stores are connected.
func InitServices(cfg *config.Config) {
	profiles := services.NewMongoProfileStore()
	anon := services.NewRedisAnonScopeStore()

	profileService = services.NewProfileService(profiles)
	quotaService = services.NewQuotaService(profiles, anon)
	reportSelector = services.NewReportSelector(anon)
	analysisService = services.NewAnalysisService(cfg.GeminiAPIKey, cfg.GeminiModel)
	billingConfig = cfg

	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		archive, err := services.NewRecordingArchive(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: failed to initialize Cloudinary: %v", err)
			log.Println("Recordings will not be archived")
		} else {
			recordingArchive = archive
			log.Println("✅ Recording archive initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Recordings will not be archived")
	}
}
