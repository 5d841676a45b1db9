package erp

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&Vendor{}, &BankAccount{}, &PurchaseOrder{}, &PurchaseOrderLine{}, &InvoiceRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestFindVendorByVATIDFoundAndMissing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Create(&Vendor{VATID: "DE123456789", Name: "Acme GmbH", Active: true}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := New(db)

	v, err := a.FindVendorByVATID(context.Background(), "DE123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Name != "Acme GmbH" {
		t.Fatalf("got %+v", v)
	}

	missing, err := a.FindVendorByVATID(context.Background(), "FR000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown VAT id, got %+v", missing)
	}
}

func TestIsDuplicateInvoiceExactMatch(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Create(&InvoiceRecord{VendorID: 1, InvoiceNumber: "INV-1"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := New(db)

	dup, err := a.IsDuplicateInvoice(context.Background(), 1, "INV-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatalf("expected duplicate")
	}

	notDup, err := a.IsDuplicateInvoice(context.Background(), 1, "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notDup {
		t.Fatalf("expected case-sensitive mismatch to not count as duplicate")
	}
}

func TestGetPurchaseOrderIsVendorScoped(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Create(&PurchaseOrder{Number: "PO-1", VendorID: 1, Status: "OPEN", TotalNet: "100.00"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := New(db)

	po, err := a.GetPurchaseOrder(context.Background(), "PO-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if po == nil {
		t.Fatalf("expected PO for correct vendor")
	}

	wrongVendor, err := a.GetPurchaseOrder(context.Background(), "PO-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrongVendor != nil {
		t.Fatalf("expected nil for a PO belonging to a different vendor")
	}
}
