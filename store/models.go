// Package store is the metadata persistence layer of spec.md §4.14:
// InvoiceTransaction, ProcessingLog, and the archived ValidationReport,
// backed by Postgres via GORM. Grounded on
// billing-app/internal/db/migrate.go and billing-app/internal/db/dsn.go
// for connection setup, and billing-app/internal/models for the
// GORM tagging style.
package store

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceTransaction is the row driving the state machine of spec.md
// §4.13. Its unique index on TransactionID and non-unique indexes on
// Status/InvoiceNumber/SellerVATID/CreatedAt match spec.md §6.
type InvoiceTransaction struct {
	ID            uint      `gorm:"primaryKey"`
	TransactionID string    `gorm:"column:transaction_id;uniqueIndex"`
	Status        string    `gorm:"index"`
	RetryCount    int
	BlobURI       string
	ProcessedXMLURI string

	InvoiceNumber string `gorm:"index"`
	SellerVATID   string `gorm:"column:seller_vat_id;index"`
	IssueDate     *time.Time
	Currency      string
	PayableAmount string // two-decimal string (TEXT column), parsed by callers
	DuplicateFlag bool

	ReportJSON string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (InvoiceTransaction) TableName() string { return "invoice_transactions" }

// ProcessingLog is one append-only entry recording a stage's timing
// and outcome for one transaction attempt — spec.md's supplemented
// per-stage-timing feature (see SPEC_FULL.md).
type ProcessingLog struct {
	ID            uint `gorm:"primaryKey"`
	TransactionID string `gorm:"column:transaction_id;index"`
	Stage         string
	Outcome       string
	DurationMS    int64
	Detail        string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (ProcessingLog) TableName() string { return "processing_logs" }

// AutoMigrate creates or updates the metadata schema. Used for local
// test environments; production deployments run the SQL migrations
// under store/migrations via golang-migrate, mirroring the teacher's
// dual AutoMigrate/golang-migrate paths (billing-app/internal/db/migrate.go).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&InvoiceTransaction{}, &ProcessingLog{})
}
