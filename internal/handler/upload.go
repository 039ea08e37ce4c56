package handler

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20

// IngestMessage is queued for each staged upload and consumed by ProcessQueue.
type IngestMessage struct {
	UploadID string `json:"upload_id"`
	BlobName string `json:"blob_name"`
	Filename string `json:"filename"`
}

// HandleUpload stages a classified-transaction CSV and queues it for import.
func (d *Dependencies) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		slog.Warn("upload attempt with invalid method", "method", r.Method, "path", r.URL.Path)
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Warn("failed to parse multipart form", "error", err, "max_size_mb", maxUploadBytes>>20)
		WriteError(w, http.StatusBadRequest, "File too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("failed to get file from form", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		WriteError(w, http.StatusBadRequest, "Only CSV files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", "filename", filename, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	slog.Info("received file upload", "filename", filename, "size_bytes", len(data))

	msg := IngestMessage{
		UploadID: uuid.NewString(),
		Filename: filename,
	}
	msg.BlobName = d.now().UTC().Format("20060102-150405") + "-" + msg.UploadID + "-" + filename

	container := d.Config.UploadsContainer
	if err := d.Blob.Upload(r.Context(), container, msg.BlobName, data, "text/csv"); err != nil {
		slog.Error("failed to upload blob", "blob_name", msg.BlobName, "container", container, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to stage upload")
		return
	}

	if err := d.Queue.EnqueueMessage(r.Context(), d.Config.IngestQueue, msg); err != nil {
		slog.Error("failed to enqueue message", "queue", d.Config.IngestQueue, "blob_name", msg.BlobName, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to queue upload")
		return
	}
	slog.Info("upload queued for import", "queue", d.Config.IngestQueue, "upload_id", msg.UploadID, "blob_name", msg.BlobName)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"uploadId": msg.UploadID,
		"blobName": msg.BlobName,
	})
}
