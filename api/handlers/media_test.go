package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicgrid/civic-report-api/api/handlers"
	"github.com/civicgrid/civic-report-api/models"
)

type fakeUploader struct {
	item models.MediaItem
	err  error
}

func (f fakeUploader) Upload(ctx context.Context, file io.Reader, folder string) (models.MediaItem, error) {
	return f.item, f.err
}

func TestMedia_UploadHandlerNotConfigured(t *testing.T) {
	h := &handlers.MediaHandler{}

	req, err := http.NewRequest("POST", "/api/v1/media", nil)
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UploadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMedia_UploadHandlerSuccess(t *testing.T) {
	h := &handlers.MediaHandler{
		Uploader: fakeUploader{item: models.MediaItem{URL: "https://cdn.example/x.jpg", ProviderID: "civic/x"}},
		Folder:   "civic",
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "pothole.jpg")
	assert.NoError(t, err)
	_, err = fw.Write([]byte("not-really-a-jpeg"))
	assert.NoError(t, err)
	assert.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", "/api/v1/media", &buf)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UploadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var item models.MediaItem
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.Equal(t, "civic/x", item.ProviderID)
}

func TestMedia_UploadHandlerMissingFile(t *testing.T) {
	h := &handlers.MediaHandler{Uploader: fakeUploader{}}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	assert.NoError(t, mw.WriteField("other", "value"))
	assert.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", "/api/v1/media", &buf)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UploadHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMedia_GenerateSignatureShape(t *testing.T) {
	h := &handlers.MediaHandler{}

	req, err := http.NewRequest("POST", "/api/v1/media/signature", nil)
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.GenerateSignature).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["timestamp"])
	assert.Len(t, resp["signature"], 40)
}
