package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
)

// QueueService handles interactions with Azure Queue Storage: CSV ingestion
// and review notifications.
type QueueService struct {
	serviceClient *azqueue.ServiceClient

	mu     sync.Mutex
	queues map[string]*azqueue.QueueClient
}

// NewQueueService creates a new QueueService instance.
func NewQueueService(queueURL string) (*QueueService, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("QUEUE_SERVICE_URL environment variable is required")
	}

	slog.Info("initializing queue service", "queue_url", queueURL)
	opts := &azqueue.ClientOptions{ClientOptions: clientOptions()}
	var client *azqueue.ServiceClient

	if isLocal(queueURL) {
		slog.Info("using Azurite shared key credentials for queue service")
		name, key := getAzuriteCredentials()
		cred, err := azqueue.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azqueue.NewServiceClientWithSharedKeyCredential(queueURL, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue service client with shared key: %w", err)
		}
	} else {
		// Production: Managed Identity
		slog.Info("using default Azure credentials for queue service")
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = azqueue.NewServiceClient(queueURL, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue service client: %w", err)
		}
	}

	slog.Info("queue service initialized successfully")
	return &QueueService{serviceClient: client, queues: make(map[string]*azqueue.QueueClient)}, nil
}

// queue returns a client for queueName, creating the queue on first use.
func (s *QueueService) queue(ctx context.Context, queueName string) *azqueue.QueueClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qc, ok := s.queues[queueName]; ok {
		return qc
	}

	qc := s.serviceClient.NewQueueClient(queueName)
	_, err := qc.Create(ctx, nil)
	if err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
		slog.Warn("failed to create queue", "queue", queueName, "error", err)
		return qc
	}
	s.queues[queueName] = qc
	return qc
}

// EnqueueMessage JSON-encodes message and adds it to a queue.
func (s *QueueService) EnqueueMessage(ctx context.Context, queueName string, message any) error {
	slog.Info("enqueuing message", "queue", queueName)
	queueClient := s.queue(ctx, queueName)

	msgBytes, err := json.Marshal(message)
	if err != nil {
		slog.Error("failed to marshal queue message", "queue", queueName, "error", err)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// The Functions host expects base64 message bodies.
	encodedMsg := base64.StdEncoding.EncodeToString(msgBytes)

	if _, err := queueClient.EnqueueMessage(ctx, encodedMsg, nil); err != nil {
		slog.Error("failed to enqueue message", "queue", queueName, "error", err)
		return fmt.Errorf("failed to enqueue message to %s: %w", queueName, err)
	}

	slog.Info("successfully enqueued message", "queue", queueName, "size_bytes", len(msgBytes))
	return nil
}
