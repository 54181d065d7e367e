// Package config reads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ecoscout/pkg/plate"
)

type Config struct {
	Port string

	DetectorBackend       string // remote | rekognition | fullframe
	DetectorURL           string
	DetectorMinConfidence float64
	DetectorTimeout       time.Duration
	PlateLabel            string

	RecognizerBackend string // tesseract | rekognition
	TesseractLang     string

	AWSRegion string

	MaxUploadBytes int64
	AnnotateMode   plate.AnnotateMode

	JWTSecret string // empty disables auth on /detect
}

// Load reads .env (if present) and the process environment. Values already
// set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN could not load .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	minConf, err := getFloat("DETECTOR_MIN_CONFIDENCE", 0)
	if err != nil {
		return nil, err
	}
	timeout, err := getDuration("DETECTOR_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	mode, err := plate.ParseAnnotateMode(strings.ToLower(getEnv("ANNOTATE_MODE", "accepted")))
	if err != nil {
		return nil, fmt.Errorf("ANNOTATE_MODE: %w", err)
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8000"),
		DetectorBackend:       strings.ToLower(getEnv("DETECTOR_BACKEND", "remote")),
		DetectorURL:           getEnv("DETECTOR_URL", "http://localhost:5000/predict"),
		DetectorMinConfidence: minConf,
		DetectorTimeout:       timeout,
		PlateLabel:            getEnv("REKOGNITION_PLATE_LABEL", "License Plate"),
		RecognizerBackend:     strings.ToLower(getEnv("RECOGNIZER_BACKEND", "tesseract")),
		TesseractLang:         getEnv("TESSERACT_LANG", "eng"),
		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		MaxUploadBytes:        maxUpload,
		AnnotateMode:          mode,
		JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	return cfg, nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	log.Printf("CONFIG %s not set, using default %q", key, fallback)
	return fallback
}

func getInt(key string, fallback int64) (int64, error) {
	v, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(fallback, 10)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(fallback, 'f', -1, 64)), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
