package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Notification kinds placed on the notification queue.
const (
	NotifyReviewRequired      = "review_required"
	NotifyRegistrationWarning = "rnd_registration"
)

// Notification is a message for the downstream delivery service.
type Notification struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	TenantID      string    `json:"tenantId"`
	Analysis      string    `json:"analysis,omitempty"`
	FinancialYear string    `json:"financialYear,omitempty"`
	Status        string    `json:"status,omitempty"`
	Message       string    `json:"message"`
	ReportBlob    string    `json:"reportBlob,omitempty"`
	Deadline      string    `json:"deadline,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// notify stamps n and places it on the notification queue.
func (d *Dependencies) notify(ctx context.Context, n Notification) error {
	n.ID = uuid.NewString()
	n.CreatedAt = d.now().UTC()

	if err := d.Queue.EnqueueMessage(ctx, d.Config.NotificationQueue, n); err != nil {
		slog.Error("failed to enqueue notification", "kind", n.Kind, "tenant_id", n.TenantID, "error", err)
		return err
	}
	slog.Info("notification enqueued", "kind", n.Kind, "tenant_id", n.TenantID, "notification_id", n.ID)
	return nil
}
