package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultGalleriesSubDir = "galleries"
	DefaultUploadsSubDir   = "uploads"
	DefaultBackupsSubDir   = "backups"
)

const (
	defaultEnrollQueueSize   = 100
	defaultNumEnrollWorkers  = 2
	defaultFrameSampleCount  = 15
	defaultReconcileMinutes  = 120
	defaultBackupHours       = 24
	defaultBackupKeep        = 7
	defaultSimilarityCutoff  = 0.45
	defaultDetectorThreshold = 0.65
)

// quality gate defaults are deliberately generous: enrollment videos come
// from phone cameras in dorm lighting
const (
	defaultMinSharpness    = 50.0
	defaultMaxYawDegrees   = 30.0
	defaultMaxPitchDegrees = 25.0
	defaultMaxRollDegrees  = 20.0
	defaultMinLumaMean     = 40.0
	defaultMaxLumaMean     = 220.0
	defaultMinLumaStdDev   = 18.0
	defaultMinFacePixels   = 60
	defaultMinLandmarkConf = 0.30
)

type Config struct {
	// database path
	DatabasePath string

	// storage configuration
	StoragePath   string // primary root for student data (uploads, galleries, backups)
	GalleriesPath string // full-calculated path for gallery directories
	UploadsPath   string // full-calculated path for raw enrollment uploads
	BackupsPath   string // full-calculated path for database backups

	// enrollment worker settings
	EnrollQueueSize  int
	NumEnrollWorkers int
	FrameSampleCount int

	// scheduler settings
	ReconcileInterval time.Duration
	BackupInterval    time.Duration
	BackupKeep        int

	// face model paths (DNN)
	FaceDetectorModelPath string
	EmbeddingModelPath    string
	EmbeddingModelName    string

	// detection / recognition thresholds
	DetectorConfThreshold float32
	SimilarityThreshold   float32

	// quality gate thresholds
	MinSharpness    float64
	MaxYawDegrees   float64
	MaxPitchDegrees float64
	MaxRollDegrees  float64
	MinLumaMean     float64
	MaxLumaMean     float64
	MinLumaStdDev   float64
	MinFacePixels   int
	MinLandmarkConf float64

	// auth
	JWTSecret string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "enrollment.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "student_data"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	galleriesSubDir := getEnvOrDefault("GALLERIES_SUBDIR", DefaultGalleriesSubDir)
	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	backupsSubDir := getEnvOrDefault("BACKUPS_SUBDIR", DefaultBackupsSubDir)

	reconcileMinutes := getEnvIntOrDefault("RECONCILE_INTERVAL_MINUTES", defaultReconcileMinutes)
	backupHours := getEnvIntOrDefault("BACKUP_INTERVAL_HOURS", defaultBackupHours)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	cfg := Config{
		DatabasePath:  dbPath,
		StoragePath:   absStorage,
		GalleriesPath: filepath.Join(absStorage, galleriesSubDir),
		UploadsPath:   filepath.Join(absStorage, uploadsSubDir),
		BackupsPath:   filepath.Join(absStorage, backupsSubDir),

		EnrollQueueSize:  getEnvIntOrDefault("ENROLL_QUEUE_SIZE", defaultEnrollQueueSize),
		NumEnrollWorkers: getEnvIntOrDefault("NUM_ENROLL_WORKERS", defaultNumEnrollWorkers),
		FrameSampleCount: getEnvIntOrDefault("FRAME_SAMPLE_COUNT", defaultFrameSampleCount),

		ReconcileInterval: time.Duration(reconcileMinutes) * time.Minute,
		BackupInterval:    time.Duration(backupHours) * time.Hour,
		BackupKeep:        getEnvIntOrDefault("BACKUP_KEEP", defaultBackupKeep),

		FaceDetectorModelPath: getEnvOrDefault("FACE_DETECTOR_MODEL_PATH", "./models/retinaface_640.onnx"),
		EmbeddingModelPath:    getEnvOrDefault("EMBEDDING_MODEL_PATH", "./models/arcface_r50.onnx"),
		EmbeddingModelName:    getEnvOrDefault("EMBEDDING_MODEL_NAME", "arcface"),

		DetectorConfThreshold: float32(getEnvFloatOrDefault("DETECTOR_CONF_THRESHOLD", defaultDetectorThreshold)),
		SimilarityThreshold:   float32(getEnvFloatOrDefault("SIMILARITY_THRESHOLD", defaultSimilarityCutoff)),

		MinSharpness:    getEnvFloatOrDefault("QUALITY_MIN_SHARPNESS", defaultMinSharpness),
		MaxYawDegrees:   getEnvFloatOrDefault("QUALITY_MAX_YAW_DEGREES", defaultMaxYawDegrees),
		MaxPitchDegrees: getEnvFloatOrDefault("QUALITY_MAX_PITCH_DEGREES", defaultMaxPitchDegrees),
		MaxRollDegrees:  getEnvFloatOrDefault("QUALITY_MAX_ROLL_DEGREES", defaultMaxRollDegrees),
		MinLumaMean:     getEnvFloatOrDefault("QUALITY_MIN_LUMA_MEAN", defaultMinLumaMean),
		MaxLumaMean:     getEnvFloatOrDefault("QUALITY_MAX_LUMA_MEAN", defaultMaxLumaMean),
		MinLumaStdDev:   getEnvFloatOrDefault("QUALITY_MIN_LUMA_STDDEV", defaultMinLumaStdDev),
		MinFacePixels:   getEnvIntOrDefault("QUALITY_MIN_FACE_PIXELS", defaultMinFacePixels),
		MinLandmarkConf: getEnvFloatOrDefault("QUALITY_MIN_LANDMARK_CONF", defaultMinLandmarkConf),

		JWTSecret: jwtSecret,
	}

	return cfg, nil
}
