// Package erp is the read-only adapter over the ERP database
// (spec.md §4.11), built the way the teacher's billing-app queries its
// own Postgres store with plain *gorm.DB calls (see
// billing-app/internal/handlers/invoice.go) rather than a generated
// query builder or a repository interface hierarchy.
package erp

// Vendor mirrors the ERP's vendor master record. Inactive vendors are
// still returned (Active=false), never filtered out at the query
// level — the business validator decides what an inactive vendor means.
type Vendor struct {
	ID     uint   `gorm:"primaryKey"`
	VATID  string `gorm:"column:vat_id;uniqueIndex"`
	Name   string
	Active bool
}

func (Vendor) TableName() string { return "erp_vendors" }

// BankAccount is one IBAN registered against a vendor.
type BankAccount struct {
	ID       uint `gorm:"primaryKey"`
	VendorID uint `gorm:"column:vendor_id;index"`
	IBAN     string
	BIC      string
}

func (BankAccount) TableName() string { return "erp_bank_accounts" }

// PurchaseOrder is one PO header, scoped to the vendor it was raised
// against.
type PurchaseOrder struct {
	ID       uint `gorm:"primaryKey"`
	Number   string
	VendorID uint `gorm:"column:vendor_id;index"`
	Status   string // "OPEN", "CLOSED"
	TotalNet string // decimal stored as text; parsed by callers
	Lines    []PurchaseOrderLine `gorm:"foreignKey:PurchaseOrderID"`
}

func (PurchaseOrder) TableName() string { return "erp_purchase_orders" }

// OpenForInvoicing reports whether the PO can still receive invoice
// three-way matches.
func (po PurchaseOrder) OpenForInvoicing() bool {
	return po.Status == "OPEN"
}

// PurchaseOrderLine is one line of a PO, keyed by the same item
// identifier scheme the canonical mapper produces.
type PurchaseOrderLine struct {
	ID              uint `gorm:"primaryKey"`
	PurchaseOrderID uint `gorm:"column:purchase_order_id;index"`
	ItemIdentifier  string
	QuantityOpen    string // decimal stored as text
}

func (PurchaseOrderLine) TableName() string { return "erp_purchase_order_lines" }

// InvoiceRecord is the append-only ledger of previously accepted
// invoice numbers per vendor, used for the duplicate check.
type InvoiceRecord struct {
	ID            uint `gorm:"primaryKey"`
	VendorID      uint `gorm:"column:vendor_id;index:idx_vendor_invoice,unique"`
	InvoiceNumber string `gorm:"index:idx_vendor_invoice,unique"`
}

func (InvoiceRecord) TableName() string { return "erp_invoice_records" }
