package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// MetadataStore wraps the read-write metadata database and implements
// the claim protocol of spec.md §4.13: an atomic conditional UPDATE is
// the only serialisation point the pipeline needs.
type MetadataStore struct {
	db *gorm.DB
}

func NewMetadataStore(db *gorm.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Claim performs the conditional RECEIVED|ERROR -> PROCESSING
// transition. ok is false if zero rows were affected — another worker
// holds the row, or it already reached a terminal, non-ERROR status.
// That is not an error; the caller simply returns without doing work.
func (s *MetadataStore) Claim(ctx context.Context, transactionID string) (ok bool, err error) {
	res := s.db.WithContext(ctx).Model(&InvoiceTransaction{}).
		Where("transaction_id = ? AND status IN ?", transactionID, []string{string(canonical.StatusReceived), string(canonical.StatusError)}).
		Update("status", string(canonical.StatusProcessing))
	if res.Error != nil {
		return false, pipelineerr.Transient("store.Claim", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RevertToReceived is called on a transient failure: the driver
// increments the retry counter and reverts status to RECEIVED so the
// queue's redelivery can re-attempt the claim.
func (s *MetadataStore) RevertToReceived(ctx context.Context, transactionID string) error {
	err := s.db.WithContext(ctx).Model(&InvoiceTransaction{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]any{
			"status":      string(canonical.StatusReceived),
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
	if err != nil {
		return pipelineerr.Transient("store.RevertToReceived", err)
	}
	return nil
}

// RetryCount returns the transaction's current retry counter.
func (s *MetadataStore) RetryCount(ctx context.Context, transactionID string) (int, error) {
	var tx InvoiceTransaction
	if err := s.db.WithContext(ctx).Select("retry_count").
		Where("transaction_id = ?", transactionID).First(&tx).Error; err != nil {
		return 0, pipelineerr.Transient("store.RetryCount", err)
	}
	return tx.RetryCount, nil
}

// Finalize writes the terminal status, the full report, and the
// denormalised key fields atomically with the status change — spec.md
// §4.13's "the full ValidationReport once, atomically with the
// terminal status change".
func (s *MetadataStore) Finalize(ctx context.Context, transactionID string, status canonical.TerminalStatus, report canonical.Report, inv *canonical.Invoice, processedXMLURI string, duplicateFlag bool) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return pipelineerr.Programmer("store.Finalize", err)
	}

	updates := map[string]any{
		"status":            string(status),
		"report_json":       string(reportJSON),
		"processed_xml_uri": processedXMLURI,
		"duplicate_flag":    duplicateFlag,
	}
	if inv != nil {
		updates["invoice_number"] = inv.InvoiceNumber
		updates["seller_vat_id"] = inv.Seller.VATID
		updates["currency"] = inv.Currency
		updates["payable_amount"] = inv.Totals.Payable.StringFixed(2)
		issue := inv.IssueDate
		updates["issue_date"] = &issue
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&InvoiceTransaction{}).
			Where("transaction_id = ?", transactionID).
			Updates(updates)
		if res.Error != nil {
			return pipelineerr.Transient("store.Finalize", res.Error)
		}
		return nil
	})
}

// AppendLog records one stage's timing and outcome, spec.md's
// supplemented per-stage-timing feature.
func (s *MetadataStore) AppendLog(ctx context.Context, transactionID, stage string, outcome canonical.Outcome, duration time.Duration, detail string) error {
	err := s.db.WithContext(ctx).Create(&ProcessingLog{
		TransactionID: transactionID,
		Stage:         stage,
		Outcome:       string(outcome),
		DurationMS:    duration.Milliseconds(),
		Detail:        detail,
	}).Error
	if err != nil {
		return pipelineerr.Transient("store.AppendLog", err)
	}
	return nil
}

// Enqueue creates a new transaction row in RECEIVED status, used by
// the upload endpoint / mail poller ahead of queue delivery.
func (s *MetadataStore) Enqueue(ctx context.Context, transactionID, blobURI string) error {
	err := s.db.WithContext(ctx).Create(&InvoiceTransaction{
		TransactionID: transactionID,
		Status:        string(canonical.StatusReceived),
		BlobURI:       blobURI,
	}).Error
	if err != nil {
		return pipelineerr.Transient("store.Enqueue", err)
	}
	return nil
}

// Get returns the current row for a transaction id.
func (s *MetadataStore) Get(ctx context.Context, transactionID string) (*InvoiceTransaction, error) {
	var tx InvoiceTransaction
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pipelineerr.Transient("store.Get", err)
	}
	return &tx, nil
}
