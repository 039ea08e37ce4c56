package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/rocjay1/tax-analyzer/internal/config"
	"github.com/rocjay1/tax-analyzer/internal/fiscal"
	"github.com/rocjay1/tax-analyzer/internal/models"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/shopspring/decimal"
)

const (
	entityPartition = "ENTITY"
	ratesPartition  = "RATES"
	batchSize       = 100
)

// DatabaseService handles interactions with Azure Table Storage.
// Classified transactions are partitioned by tenant and financial year.
type DatabaseService struct {
	serviceClient     *aztables.ServiceClient
	transactionsTable string
	entitiesTable     string
	ratesTable        string
}

// NewDatabaseService creates a new DatabaseService and ensures its tables exist.
func NewDatabaseService(ctx context.Context, cfg *config.Config) (*DatabaseService, error) {
	tableURL := cfg.TableServiceURL
	if tableURL == "" {
		return nil, fmt.Errorf("TABLE_SERVICE_URL environment variable is required")
	}

	opts := &aztables.ClientOptions{ClientOptions: clientOptions()}
	var client *aztables.ServiceClient

	// Check if running locally with Azurite (http endpoint)
	if isLocal(tableURL) {
		slog.Info("using Azurite credentials for database service")
		name, key := getAzuriteCredentials()
		cred, err := aztables.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = aztables.NewServiceClientWithSharedKey(tableURL, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client with shared key: %w", err)
		}
	} else {
		// Production: Managed Identity
		slog.Info("using default Azure credentials for database service")
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = aztables.NewServiceClient(tableURL, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client: %w", err)
		}
	}

	svc := &DatabaseService{
		serviceClient:     client,
		transactionsTable: cfg.TransactionsTable,
		entitiesTable:     cfg.EntitiesTable,
		ratesTable:        cfg.RatesTable,
	}

	if err := svc.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("database service initialized successfully",
		"table_url", tableURL,
		"transactions_table", svc.transactionsTable,
		"entities_table", svc.entitiesTable,
		"rates_table", svc.ratesTable,
	)
	return svc, nil
}

// CreateTables ensures all required tables exist in Azure Table Storage.
func (s *DatabaseService) CreateTables(ctx context.Context) error {
	for _, tableName := range []string{s.transactionsTable, s.entitiesTable, s.ratesTable} {
		_, err := s.serviceClient.CreateTable(ctx, tableName, nil)
		if err != nil {
			// Ignore error if table already exists
			var azErr *azcore.ResponseError
			if errors.As(err, &azErr) && azErr.ErrorCode == "TableAlreadyExists" {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}
	return nil
}

// getClient returns a client for the specified table.
func (s *DatabaseService) getClient(tableName string) *aztables.Client {
	return s.serviceClient.NewClient(tableName)
}

// PartitionKey returns the partition holding a tenant's transactions for one financial year.
func PartitionKey(tenantID string, fy fiscal.Year) string {
	return keySafe(tenantID) + "_" + fy.Label()
}

// RowKey returns the row key for a transaction. Rows without a transaction id get a
// deterministic hash; index separates identical rows within one import.
func RowKey(t models.ClassifiedTransaction, index int) string {
	if id := strings.TrimSpace(t.TransactionID); id != "" {
		return keySafe(id)
	}
	uniqueString := fmt.Sprintf("%s|%s|%s|%s|%d",
		t.Date.Format(time.DateOnly), t.Description, t.SupplierName, t.Amount.String(), index)
	hash := sha256.Sum256([]byte(uniqueString))
	return hex.EncodeToString(hash[:])
}

// keySafe replaces characters Table Storage rejects in keys.
var keySafe = strings.NewReplacer("/", "-", `\`, "-", "#", "-", "?", "-").Replace

// filterEq builds an OData equality filter, escaping single quotes.
func filterEq(field, value string) string {
	return fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''"))
}

// FetchTransactions loads a tenant's classified transactions for the given years,
// ordered by date then transaction id. An empty result is not an error.
func (s *DatabaseService) FetchTransactions(ctx context.Context, tenantID string, years []fiscal.Year) ([]models.ClassifiedTransaction, error) {
	client := s.getClient(s.transactionsTable)
	txs := []models.ClassifiedTransaction{}

	for _, fy := range years {
		filter := filterEq("PartitionKey", PartitionKey(tenantID, fy))
		pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return nil, &models.DataFetchError{TenantID: tenantID, Op: "list classified transactions for " + fy.Label(), Err: err}
			}
			page, err := decodePage(tenantID, fy, resp.Entities)
			if err != nil {
				return nil, err
			}
			txs = append(txs, page...)
		}
	}

	slices.SortFunc(txs, func(a, b models.ClassifiedTransaction) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	slog.Info("fetched classified transactions", "tenant_id", tenantID, "years", len(years), "count", len(txs))
	return txs, nil
}

// SaveTransactions writes transactions using batched upserts, skipping rows whose key
// already exists in the partition. It returns only the transactions that were new.
func (s *DatabaseService) SaveTransactions(ctx context.Context, transactions []models.ClassifiedTransaction) ([]models.ClassifiedTransaction, error) {
	newTransactions := []models.ClassifiedTransaction{}
	if len(transactions) == 0 {
		return newTransactions, nil
	}

	client := s.getClient(s.transactionsTable)

	partitions := make(map[string][]models.ClassifiedTransaction)
	for _, t := range transactions {
		if strings.TrimSpace(t.TenantID) == "" {
			return nil, models.NewValidationError("tenant id", t.TransactionID, "transaction has no tenant")
		}
		fy, err := fiscal.Of(t)
		if err != nil {
			return nil, err
		}
		t.FinancialYear = fy.Label()
		pk := PartitionKey(t.TenantID, fy)
		partitions[pk] = append(partitions[pk], t)
	}

	for _, pk := range slices.Sorted(maps.Keys(partitions)) {
		existingKeys, err := s.existingRowKeys(ctx, client, pk)
		if err != nil {
			return nil, err
		}

		var batch []aztables.TransactionAction
		importedAt := time.Now().UTC().Format(time.RFC3339)
		occurrences := make(map[string]int)

		for _, t := range partitions[pk] {
			sig := fmt.Sprintf("%s|%s|%s|%s", t.Date.Format(time.DateOnly), t.Description, t.SupplierName, t.Amount.String())
			rk := RowKey(t, occurrences[sig])
			occurrences[sig]++
			if existingKeys[rk] {
				continue
			}
			existingKeys[rk] = true

			entity, err := toEntity(pk, rk, t, importedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to encode transaction %s: %w", rk, err)
			}
			batch = append(batch, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeInsertReplace,
				Entity:     entity,
			})
			newTransactions = append(newTransactions, t)
		}

		for i := 0; i < len(batch); i += batchSize {
			end := min(i+batchSize, len(batch))
			if _, err := client.SubmitTransaction(ctx, batch[i:end], nil); err != nil {
				return nil, fmt.Errorf("failed to submit transaction batch for %s: %w", pk, err)
			}
		}
		slog.Debug("saved partition", "partition_key", pk, "new_rows", len(batch))
	}

	return newTransactions, nil
}

func (s *DatabaseService) existingRowKeys(ctx context.Context, client *aztables.Client, pk string) (map[string]bool, error) {
	filter := filterEq("PartitionKey", pk)
	selectFields := "RowKey"
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
		Select: &selectFields,
	})

	keys := make(map[string]bool)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list existing transactions: %w", err)
		}
		for _, raw := range resp.Entities {
			var row struct {
				RowKey string `json:"RowKey"`
			}
			if err := json.Unmarshal(raw, &row); err == nil && row.RowKey != "" {
				keys[row.RowKey] = true
			}
		}
	}
	return keys, nil
}

// transactionRow is the stored shape of a classified transaction. Amounts are kept as
// decimal strings; Payload carries the full record.
type transactionRow struct {
	PartitionKey    string `json:"PartitionKey"`
	RowKey          string `json:"RowKey"`
	Date            string `json:"Date"`
	Amount          string `json:"Amount"`
	Category        string `json:"Category"`
	TransactionType string `json:"TransactionType"`
	Payload         string `json:"Payload"`
	ImportedAt      string `json:"ImportedAt,omitempty"`
}

func toEntity(pk, rk string, t models.ClassifiedTransaction, importedAt string) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transactionRow{
		PartitionKey:    pk,
		RowKey:          rk,
		Date:            t.Date.Format(time.DateOnly),
		Amount:          t.Amount.String(),
		Category:        string(t.Category),
		TransactionType: string(t.TransactionType),
		Payload:         string(payload),
		ImportedAt:      importedAt,
	})
}

// decodePage converts one page of transaction rows. An unreadable row fails the
// whole fetch, since an analysis of the remaining rows would misstate the position.
func decodePage(tenantID string, fy fiscal.Year, entities [][]byte) ([]models.ClassifiedTransaction, error) {
	txs := make([]models.ClassifiedTransaction, 0, len(entities))
	for _, raw := range entities {
		t, err := fromEntity(raw)
		if err != nil {
			slog.Error("unreadable transaction row", "tenant_id", tenantID, "financial_year", fy.Label(), "error", err)
			return nil, &models.DataFetchError{TenantID: tenantID, Op: "decode classified transactions for " + fy.Label(), Err: err}
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func fromEntity(raw []byte) (models.ClassifiedTransaction, error) {
	var row transactionRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.ClassifiedTransaction{}, fmt.Errorf("failed to unmarshal row: %w", err)
	}
	if row.Payload == "" {
		return models.ClassifiedTransaction{}, fmt.Errorf("row %s has no payload", row.RowKey)
	}
	var t models.ClassifiedTransaction
	if err := json.Unmarshal([]byte(row.Payload), &t); err != nil {
		return models.ClassifiedTransaction{}, fmt.Errorf("failed to unmarshal payload of %s: %w", row.RowKey, err)
	}
	return t, nil
}

// GetEntityContext returns the stored entity context for a tenant, or nil when none is stored.
func (s *DatabaseService) GetEntityContext(ctx context.Context, tenantID string) (*models.EntityContext, error) {
	client := s.getClient(s.entitiesTable)

	resp, err := client.GetEntity(ctx, entityPartition, keySafe(tenantID), nil)
	if err != nil {
		var azErr *azcore.ResponseError
		if errors.As(err, &azErr) && azErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, &models.DataFetchError{TenantID: tenantID, Op: "get entity context", Err: err}
	}

	var row struct {
		Context string `json:"Context"`
	}
	if err := json.Unmarshal(resp.Value, &row); err != nil {
		return nil, &models.DataFetchError{TenantID: tenantID, Op: "decode entity context", Err: err}
	}
	var entity models.EntityContext
	if err := json.Unmarshal([]byte(row.Context), &entity); err != nil {
		return nil, &models.DataFetchError{TenantID: tenantID, Op: "decode entity context", Err: err}
	}
	return &entity, nil
}

// SaveEntityContext upserts a tenant's entity context.
func (s *DatabaseService) SaveEntityContext(ctx context.Context, tenantID string, entity *models.EntityContext) error {
	client := s.getClient(s.entitiesTable)

	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity context: %w", err)
	}
	row := map[string]any{
		"PartitionKey": entityPartition,
		"RowKey":       keySafe(tenantID),
		"EntityType":   string(entity.Type()),
		"Context":      string(payload),
		"UpdatedAt":    time.Now().UTC().Format(time.RFC3339),
	}
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal entity row: %w", err)
	}
	if _, err := client.UpsertEntity(ctx, rowJSON, nil); err != nil {
		return fmt.Errorf("failed to save entity context for %s: %w", tenantID, err)
	}
	return nil
}

// FetchRates reads the statutory rate table. Each row's RowKey is a rate key and
// Value holds the rate as a decimal string or number.
func (s *DatabaseService) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	client := s.getClient(s.ratesTable)

	filter := filterEq("PartitionKey", ratesPartition)
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	fetched := make(map[string]decimal.Decimal)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list statutory rates: %w", err)
		}
		for _, raw := range resp.Entities {
			key, value, err := parseRateRow(raw)
			if err != nil {
				slog.Warn("skipping unreadable rate row", "error", err)
				continue
			}
			fetched[key] = value
		}
	}
	if len(fetched) == 0 {
		return nil, rates.ErrNoLiveRates
	}
	return fetched, nil
}

func parseRateRow(raw []byte) (string, decimal.Decimal, error) {
	var row struct {
		RowKey string          `json:"RowKey"`
		Value  json.RawMessage `json:"Value"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", decimal.Zero, fmt.Errorf("failed to unmarshal rate row: %w", err)
	}
	if row.RowKey == "" || len(row.Value) == 0 {
		return "", decimal.Zero, fmt.Errorf("rate row missing key or value")
	}

	var value decimal.Decimal
	if err := value.UnmarshalJSON(row.Value); err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid value for rate %s: %w", row.RowKey, err)
	}
	return row.RowKey, value, nil
}
