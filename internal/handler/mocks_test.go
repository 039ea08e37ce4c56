package handler

import (
	"context"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/config"
	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
)

// MockTransactionStore is a mock implementation of TransactionStore
type MockTransactionStore struct {
	FetchTransactionsFunc func(ctx context.Context, tenantID string, years []fiscal.Year) ([]models.ClassifiedTransaction, error)
	SaveTransactionsFunc  func(ctx context.Context, transactions []models.ClassifiedTransaction) ([]models.ClassifiedTransaction, error)
}

func (m *MockTransactionStore) FetchTransactions(ctx context.Context, tenantID string, years []fiscal.Year) ([]models.ClassifiedTransaction, error) {
	if m.FetchTransactionsFunc != nil {
		return m.FetchTransactionsFunc(ctx, tenantID, years)
	}
	return nil, nil
}

func (m *MockTransactionStore) SaveTransactions(ctx context.Context, transactions []models.ClassifiedTransaction) ([]models.ClassifiedTransaction, error) {
	if m.SaveTransactionsFunc != nil {
		return m.SaveTransactionsFunc(ctx, transactions)
	}
	return transactions, nil
}

// MockEntityStore is a mock implementation of EntityStore
type MockEntityStore struct {
	GetEntityContextFunc  func(ctx context.Context, tenantID string) (*models.EntityContext, error)
	SaveEntityContextFunc func(ctx context.Context, tenantID string, entity *models.EntityContext) error
}

func (m *MockEntityStore) GetEntityContext(ctx context.Context, tenantID string) (*models.EntityContext, error) {
	if m.GetEntityContextFunc != nil {
		return m.GetEntityContextFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *MockEntityStore) SaveEntityContext(ctx context.Context, tenantID string, entity *models.EntityContext) error {
	if m.SaveEntityContextFunc != nil {
		return m.SaveEntityContextFunc(ctx, tenantID, entity)
	}
	return nil
}

// MockBlobClient is a mock implementation of BlobClient
type MockBlobClient struct {
	UploadFunc       func(ctx context.Context, containerName, blobName string, data []byte, contentType string) error
	DownloadTextFunc func(ctx context.Context, containerName, blobName string) (string, error)
}

func (m *MockBlobClient) Upload(ctx context.Context, containerName, blobName string, data []byte, contentType string) error {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, containerName, blobName, data, contentType)
	}
	return nil
}

func (m *MockBlobClient) DownloadText(ctx context.Context, containerName, blobName string) (string, error) {
	if m.DownloadTextFunc != nil {
		return m.DownloadTextFunc(ctx, containerName, blobName)
	}
	return "", nil
}

// MockQueueClient is a mock implementation of QueueClient
type MockQueueClient struct {
	EnqueueMessageFunc func(ctx context.Context, queueName string, message any) error
}

func (m *MockQueueClient) EnqueueMessage(ctx context.Context, queueName string, message any) error {
	if m.EnqueueMessageFunc != nil {
		return m.EnqueueMessageFunc(ctx, queueName, message)
	}
	return nil
}

// stubAnalysis is a minimal Analysis for handler tests.
type stubAnalysis struct {
	Review bool   `json:"professionalReviewRequired"`
	Note   string `json:"note"`
}

func (s *stubAnalysis) RequiresReview() bool { return s.Review }

func testConfig() *config.Config {
	return &config.Config{
		ReportsContainer:  "tax-reports",
		UploadsContainer:  "uploads",
		IngestQueue:       "ingest-queue",
		NotificationQueue: "tax-notifications",
		FetchTimeout:      5 * time.Second,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
