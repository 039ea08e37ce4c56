package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/config"
	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
)

// TransactionStore reads and writes classified transactions.
type TransactionStore interface {
	FetchTransactions(ctx context.Context, tenantID string, years []fiscal.Year) ([]models.ClassifiedTransaction, error)
	SaveTransactions(ctx context.Context, transactions []models.ClassifiedTransaction) ([]models.ClassifiedTransaction, error)
}

// EntityStore reads and writes per-tenant entity contexts.
type EntityStore interface {
	GetEntityContext(ctx context.Context, tenantID string) (*models.EntityContext, error)
	SaveEntityContext(ctx context.Context, tenantID string, entity *models.EntityContext) error
}

// BlobClient defines the blob storage operations used by handlers.
type BlobClient interface {
	Upload(ctx context.Context, containerName, blobName string, data []byte, contentType string) error
	DownloadText(ctx context.Context, containerName, blobName string) (string, error)
}

// QueueClient defines the queue operations used by handlers.
type QueueClient interface {
	EnqueueMessage(ctx context.Context, queueName string, message any) error
}

// Dependencies holds the services required by the handlers.
type Dependencies struct {
	Transactions TransactionStore
	Entities     EntityStore
	Blob         BlobClient
	Queue        QueueClient
	Analyzers    map[string]AnalyzeFunc
	Config       *config.Config
	Now          func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// StatusFor maps an engine or store error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrDataFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status StatusFor assigns it.
// Internal errors are not echoed to the caller.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	WriteError(w, status, msg)
}
