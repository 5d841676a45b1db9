package erp

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// Adapter is the read-only ERP contract of spec.md §4.11. Every query
// uses gorm's bound-parameter placeholders; a connectivity or timeout
// failure is a transient error the caller retries, a query returning
// no rows is a plain nil result, never an error.
type Adapter struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

// FindVendorByVATID looks up a vendor by VAT id. Inactive vendors are
// returned too, with Active=false.
func (a *Adapter) FindVendorByVATID(ctx context.Context, vatID string) (*Vendor, error) {
	var v Vendor
	err := a.db.WithContext(ctx).Where("vat_id = ?", vatID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerr.Transient("erp.FindVendorByVATID", err)
	}
	return &v, nil
}

// IsDuplicateInvoice reports an exact, case-sensitive match against
// previously accepted invoice numbers for the vendor.
func (a *Adapter) IsDuplicateInvoice(ctx context.Context, vendorID uint, invoiceNumber string) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&InvoiceRecord{}).
		Where("vendor_id = ? AND invoice_number = ?", vendorID, invoiceNumber).
		Count(&count).Error
	if err != nil {
		return false, pipelineerr.Transient("erp.IsDuplicateInvoice", err)
	}
	return count > 0, nil
}

// GetVendorBankDetails returns every IBAN registered for the vendor.
func (a *Adapter) GetVendorBankDetails(ctx context.Context, vendorID uint) ([]BankAccount, error) {
	var accounts []BankAccount
	err := a.db.WithContext(ctx).Where("vendor_id = ?", vendorID).Find(&accounts).Error
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetVendorBankDetails", err)
	}
	return accounts, nil
}

// GetPurchaseOrder returns the PO if it exists and belongs to
// vendorID. A PO number that exists under a different vendor is
// treated identically to a non-existent PO — vendor scoping is a
// safety cross-check, not a distinct error path.
func (a *Adapter) GetPurchaseOrder(ctx context.Context, poNumber string, vendorID uint) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := a.db.WithContext(ctx).Preload("Lines").
		Where("number = ? AND vendor_id = ?", poNumber, vendorID).
		First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pipelineerr.Transient("erp.GetPurchaseOrder", err)
	}
	return &po, nil
}
