package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/rnd"
)

// HandleNightlyTrigger checks R&D registration deadlines for the most recently
// ended financial year and queues a reminder for every configured tenant whose
// deadline is approaching or has passed.
func (d *Dependencies) HandleNightlyTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.Info("starting nightly trigger processing")

	tenants := d.Config.NightlyTenants
	if len(tenants) == 0 {
		slog.Warn("NIGHTLY_TENANTS is not set; skipping registration reminders")
		w.WriteHeader(http.StatusOK)
		return
	}

	now := d.now()
	fy := fiscal.ForDate(now).Prev()
	deadline := rnd.RegistrationDeadline(fy.EndDate())
	status := rnd.RegistrationStatus(fy.EndDate(), now)
	days := rnd.DaysUntil(deadline, now)

	slog.Info("checking registration deadline",
		"financial_year", fy.Label(),
		"deadline", deadline.Format("2006-01-02"),
		"days_until_deadline", days,
		"status", status,
	)
	if status == rnd.NotRegistered {
		slog.Info("registration deadline not yet near; nothing to send")
		w.WriteHeader(http.StatusOK)
		return
	}

	sent := 0
	for _, tenantID := range tenants {
		active, err := d.hasRnDActivity(ctx, tenantID, fy)
		if err != nil {
			slog.Error("failed to check R&D activity", "tenant_id", tenantID, "error", err)
			continue
		}
		if !active {
			slog.Debug("no R&D activity recorded", "tenant_id", tenantID, "financial_year", fy.Label())
			continue
		}

		n := Notification{
			Kind:          NotifyRegistrationWarning,
			TenantID:      tenantID,
			Analysis:      "rnd",
			FinancialYear: fy.Label(),
			Status:        string(status),
			Deadline:      deadline.Format("2006-01-02"),
			Message:       registrationMessage(fy, status, days),
		}
		// Continue to the next tenant even if the queue rejects this one.
		if err := d.notify(ctx, n); err == nil {
			sent++
		}
	}

	slog.Info("nightly trigger processing complete", "tenants", len(tenants), "reminders_sent", sent)
	w.WriteHeader(http.StatusOK)
}

func (d *Dependencies) hasRnDActivity(ctx context.Context, tenantID string, fy fiscal.Year) (bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, d.Config.FetchTimeout)
	defer cancel()

	txs, err := d.Transactions.FetchTransactions(fetchCtx, tenantID, []fiscal.Year{fy})
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(txs, func(t models.ClassifiedTransaction) bool {
		return t.RnD.Candidate
	}), nil
}

func registrationMessage(fy fiscal.Year, status rnd.Registration, days int) string {
	if status == rnd.DeadlinePassed {
		return fmt.Sprintf("R&D registration deadline for %s passed %d days ago", fy.Label(), -days)
	}
	return fmt.Sprintf("R&D activities for %s must be registered within %d days", fy.Label(), days)
}
