package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/models"
)

const maxUploadBytes = 25 << 20 // 25 MiB

// Uploader pushes a file to the media host and returns its hosted location
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, folder string) (models.MediaItem, error)
}

type cloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func (c *cloudinaryUploader) Upload(ctx context.Context, file io.Reader, folder string) (models.MediaItem, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: folder})
	if err != nil {
		return models.MediaItem{}, err
	}
	return models.MediaItem{URL: resp.SecureURL, ProviderID: resp.PublicID}, nil
}

// MediaHandler handles attachment uploads and Cloudinary signing
type MediaHandler struct {
	Uploader Uploader
	Folder   string
}

func NewMediaHandler(conf *config.Config) *MediaHandler {
	h := &MediaHandler{Folder: conf.CloudinaryFolder}
	cld, err := cloudinary.NewFromURL(conf.CloudinaryURL)
	if err != nil {
		// uploads will 503 until the url is fixed, everything else still works
		zap.S().With(err).Warn("cloudinary not configured")
		return h
	}
	h.Uploader = &cloudinaryUploader{cld: cld}
	return h
}

// UploadHandler accepts one multipart file under the "file" field and returns
// the hosted url and provider id for inclusion in a report or emergency.
func (h *MediaHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.Uploader == nil {
		config.ErrorStatus("media uploads are not configured", http.StatusServiceUnavailable, w, errors.New("no uploader"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		config.ErrorStatus("failed to parse upload", http.StatusBadRequest, w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		config.ErrorStatus("missing file field", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	item, err := h.Uploader.Upload(ctx, file, h.Folder)
	if err != nil {
		config.ErrorStatus("failed to upload media", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("media uploaded", "filename", header.Filename, "providerId", item.ProviderID)
	respondJSON(w, http.StatusCreated, item)
}

// GenerateSignature generates a signature for direct-to-Cloudinary uploads
func (h *MediaHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	mac := hmac.New(sha1.New, []byte(apiSecret))
	mac.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(mac.Sum(nil))

	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
