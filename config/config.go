package config

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL              string
	DatabaseName     string
	Port             string
	Environment      string
	JWTSecret        string
	CloudinaryURL    string
	CloudinaryFolder string
	GeocodeBaseURL   string
	SendgridAPIKey   string
	EmailFrom        string
	PublicWebBaseURL string
}

// New sets up all config related services
func New() *Config {
	// a missing .env file is fine, the platform injects env vars directly
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     os.Getenv("DB_NAME"),
		Port:             os.Getenv("PORT"),
		Environment:      env,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: os.Getenv("CLOUDINARY_FOLDER"),
		GeocodeBaseURL:   os.Getenv("GEOCODE_BASE_URL"),
		SendgridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
		PublicWebBaseURL: os.Getenv("PUBLIC_WEB_BASE_URL"),
	}
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

type errorResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Errors  interface{} `json:"errors,omitempty"`
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// given message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	resp := errorResponse{Success: false, Message: message}
	if err != nil {
		resp.Errors = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(resp)
	w.Write(b)
}

// ErrorFields writes a validation failure with per-field detail
func ErrorFields(message string, httpStatusCode int, w http.ResponseWriter, fields map[string]string) {
	zap.S().Errorw(message, "fields", fields)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(errorResponse{Success: false, Message: message, Errors: fields})
	w.Write(b)
}
