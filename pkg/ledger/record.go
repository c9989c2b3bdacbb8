// Package ledger stores committed inventory records, one store per replica.
package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Caqil/harn-ledger/internal/security"
)

// MaxRecordLength bounds a submitted record string
const MaxRecordLength = 4096

// PartialSignature is one replica's commit signature over a record
type PartialSignature struct {
	Signature string `json:"signature"`
	SignedBy  string `json:"signed_by"`
}

// Record is one committed ledger row. Field names follow the node_<x>.json
// files.
type Record struct {
	Record            string             `json:"record"`
	Signature         string             `json:"signature"`
	Status            string             `json:"status,omitempty"`
	VerifiedBy        string             `json:"verified_by,omitempty"`
	Sequence          uint64             `json:"sequence"`
	View              uint64             `json:"view"`
	Timestamp         string             `json:"timestamp,omitempty"`
	IsPrimary         bool               `json:"is_primary"`
	PartialSignatures []PartialSignature `json:"partial_signatures,omitempty"`
}

// DisplayStatus returns the status, falling back to "Verified by <x>"
func (r Record) DisplayStatus() string {
	if r.Status != "" {
		return r.Status
	}
	return "Verified by " + r.VerifiedBy
}

// Item is the parsed form of a node:item:quantity:price record string
type Item struct {
	Node     string
	ItemID   string
	Quantity *int64
	Price    *int64
}

// ParseItem splits a record string. Records with fewer than two fields are
// not items. A missing or non-numeric quantity or price is nil.
func ParseItem(record string) (Item, bool) {
	parts := strings.Split(record, ":")
	if len(parts) < 2 {
		return Item{}, false
	}

	item := Item{Node: parts[0], ItemID: parts[1]}
	if len(parts) > 2 {
		item.Quantity = parseOptional(parts[2])
	}
	if len(parts) > 3 {
		item.Price = parseOptional(parts[3])
	}
	return item, true
}

func parseOptional(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// String formats the item back into record form
func (i Item) String() string {
	s := i.Node + ":" + i.ItemID
	if i.Quantity == nil && i.Price == nil {
		return s
	}
	s += ":" + optionalString(i.Quantity)
	if i.Price != nil {
		s += ":" + optionalString(i.Price)
	}
	return s
}

func optionalString(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// ValidateRecord checks a submitted record string
func ValidateRecord(record string) error {
	if strings.TrimSpace(record) == "" {
		return fmt.Errorf("%w: empty record", ErrInvalidRecord)
	}
	if err := security.ValidateText(record, MaxRecordLength); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
