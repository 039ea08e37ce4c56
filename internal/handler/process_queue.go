package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rocjay1/tax-analyzer/internal/csvparse"
)

// invokeRequest represents the payload from Azure Functions Custom Handler.
type invokeRequest struct {
	Data     map[string]any `json:"Data"`
	Metadata map[string]any `json:"Metadata"`
}

// maxLoggedRowErrors bounds how many CSV row errors are written to the log.
const maxLoggedRowErrors = 10

// ProcessQueue handles the queue trigger for importing staged CSV uploads.
func (d *Dependencies) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var invokeReq invokeRequest
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read queue request body", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := json.Unmarshal(bodyBytes, &invokeReq); err != nil {
		slog.Error("failed to unmarshal queue request", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to unmarshal request")
		return
	}

	queueItemVal, ok := invokeReq.Data["queueItem"]
	if !ok {
		queueItemVal, ok = invokeReq.Data["queueitem"]
		if !ok {
			WriteError(w, http.StatusBadRequest, "Missing queueItem in Data")
			return
		}
	}

	queueItemStr, ok := queueItemVal.(string)
	if !ok {
		WriteError(w, http.StatusBadRequest, "queueItem is not a string")
		return
	}

	var msg IngestMessage
	if err := json.Unmarshal([]byte(queueItemStr), &msg); err != nil {
		slog.Error("failed to unmarshal queueItem", "error", err)
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid queueItem JSON: %v", err))
		return
	}
	if msg.BlobName == "" {
		slog.Warn("queue message missing blob_name", "upload_id", msg.UploadID)
		WriteError(w, http.StatusBadRequest, "Missing blob_name")
		return
	}

	container := d.Config.UploadsContainer
	slog.Info("processing queue item", "upload_id", msg.UploadID, "blob_name", msg.BlobName, "container", container)

	csvContent, err := d.Blob.DownloadText(r.Context(), container, msg.BlobName)
	if err != nil {
		slog.Error("failed to download CSV from blob", "blob_name", msg.BlobName, "container", container, "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to download CSV: %v", err))
		return
	}

	transactions, rowErrors := csvparse.ParseCSV(csvContent)
	slog.Info("parsed CSV content", "blob_name", msg.BlobName, "transactions_count", len(transactions), "errors_count", len(rowErrors))
	for i, e := range rowErrors {
		if i == maxLoggedRowErrors {
			slog.Warn("further CSV row errors omitted", "blob_name", msg.BlobName, "omitted", len(rowErrors)-i)
			break
		}
		slog.Warn("skipped CSV row", "blob_name", msg.BlobName, "error", e)
	}

	if len(transactions) == 0 {
		slog.Warn("CSV contained no valid transactions", "blob_name", msg.BlobName, "errors_count", len(rowErrors))
		// Consume the message so it doesn't retry forever.
		w.WriteHeader(http.StatusOK)
		return
	}

	newTransactions, err := d.Transactions.SaveTransactions(r.Context(), transactions)
	if err != nil {
		if StatusFor(err) == http.StatusBadRequest {
			slog.Error("rejected CSV import", "blob_name", msg.BlobName, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.Error("failed to save transactions", "total_count", len(transactions), "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save transactions: %v", err))
		return
	}

	slog.Info("queue processing complete",
		"upload_id", msg.UploadID,
		"blob_name", msg.BlobName,
		"new_transactions_count", len(newTransactions),
		"duplicates_skipped", len(transactions)-len(newTransactions),
	)
	w.WriteHeader(http.StatusOK)
}
