package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
)

// Analysis is the common surface of every analyzer summary.
type Analysis interface {
	RequiresReview() bool
}

// AnalyzeFunc runs one analyzer over fetched transactions.
type AnalyzeFunc func(ctx context.Context, txs []models.ClassifiedTransaction, entity *models.EntityContext) (Analysis, error)

// Adapt turns an analyzer's Analyze method into an AnalyzeFunc.
func Adapt[S Analysis](analyze func(context.Context, []models.ClassifiedTransaction, *models.EntityContext) (S, error)) AnalyzeFunc {
	return func(ctx context.Context, txs []models.ClassifiedTransaction, entity *models.EntityContext) (Analysis, error) {
		s, err := analyze(ctx, txs, entity)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// HandleAnalysis runs the analyzer named by the {kind} path segment for a tenant
// over the from..to financial-year range.
func (d *Dependencies) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tenantID := r.PathValue("tenant")
	kind := r.PathValue("kind")
	if tenantID == "" {
		WriteError(w, http.StatusBadRequest, "Missing tenant")
		return
	}
	analyze, ok := d.Analyzers[kind]
	if !ok {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Unknown analysis %q", kind))
		return
	}

	years, err := d.yearRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		slog.Warn("invalid financial year range", "tenant_id", tenantID, "error", err)
		WriteServiceError(w, err)
		return
	}

	entity, err := d.entityFor(r, tenantID)
	if err != nil {
		slog.Warn("failed to resolve entity context", "tenant_id", tenantID, "error", err)
		WriteServiceError(w, err)
		return
	}

	fetchCtx, cancel := context.WithTimeout(r.Context(), d.Config.FetchTimeout)
	txs, err := d.Transactions.FetchTransactions(fetchCtx, tenantID, years)
	cancel()
	if err != nil {
		slog.Error("failed to fetch transactions", "tenant_id", tenantID, "analysis", kind, "error", err)
		WriteServiceError(w, err)
		return
	}

	result, err := analyze(r.Context(), txs, entity)
	if err != nil {
		slog.Warn("analysis rejected", "tenant_id", tenantID, "analysis", kind, "error", err)
		WriteServiceError(w, err)
		return
	}

	from, to := years[0].Label(), years[len(years)-1].Label()
	blobName := d.archive(r.Context(), tenantID, kind, from, to, result)

	if result.RequiresReview() {
		_ = d.notify(r.Context(), Notification{
			Kind:          NotifyReviewRequired,
			TenantID:      tenantID,
			Analysis:      kind,
			FinancialYear: yearSpan(from, to),
			Message:       fmt.Sprintf("%s analysis for %s requires professional review", kind, yearSpan(from, to)),
			ReportBlob:    blobName,
		})
	}

	slog.Info("analysis complete",
		"tenant_id", tenantID,
		"analysis", kind,
		"from", from,
		"to", to,
		"transactions", len(txs),
		"review_required", result.RequiresReview(),
	)
	WriteJSON(w, http.StatusOK, result)
}

// yearRange resolves the from/to query parameters. Either may be omitted; both
// omitted means the current financial year.
func (d *Dependencies) yearRange(from, to string) ([]fiscal.Year, error) {
	switch {
	case from == "" && to == "":
		current := fiscal.ForDate(d.now()).Label()
		from, to = current, current
	case from == "":
		from = to
	case to == "":
		to = from
	}
	return fiscal.Range(from, to)
}

// entityFor prefers an entity context in the request body over the stored one.
func (d *Dependencies) entityFor(r *http.Request, tenantID string) (*models.EntityContext, error) {
	var entity models.EntityContext
	err := json.NewDecoder(r.Body).Decode(&entity)
	switch {
	case err == nil:
		return &entity, nil
	case errors.Is(err, io.EOF):
		return d.Entities.GetEntityContext(r.Context(), tenantID)
	default:
		return nil, models.NewValidationError("entity context", "", err.Error())
	}
}

// archive stores the summary JSON. Failures are logged and otherwise ignored.
func (d *Dependencies) archive(ctx context.Context, tenantID, kind, from, to string, result Analysis) string {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("failed to marshal summary for archive", "tenant_id", tenantID, "error", err)
		return ""
	}

	blobName := fmt.Sprintf("%s/%s/%s/%s.json", tenantID, kind, yearSpan(from, to), d.now().UTC().Format("20060102-150405"))
	if err := d.Blob.Upload(ctx, d.Config.ReportsContainer, blobName, data, "application/json"); err != nil {
		slog.Warn("failed to archive summary", "tenant_id", tenantID, "blob_name", blobName, "error", err)
		return ""
	}
	return blobName
}

func yearSpan(from, to string) string {
	if from == to {
		return from
	}
	return from + "_" + to
}
