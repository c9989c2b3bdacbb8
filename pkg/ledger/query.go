package ledger

import (
	"encoding/json"
)

// QueryResult is one matching row as returned by the query API
type QueryResult struct {
	NodeID            string             `json:"node_id"`
	ItemID            string             `json:"item_id"`
	Quantity          *int64             `json:"quantity"`
	Price             *int64             `json:"price"`
	Signature         string             `json:"signature"`
	Status            string             `json:"status"`
	IsPrimary         bool               `json:"is_primary"`
	PartialSignatures []PartialSignature `json:"partial_signatures"`
}

// Query returns the store's records for itemID, or every item record when
// itemID is empty. Identical rows are reported once, in first-seen order.
func Query(s Store, itemID string) ([]QueryResult, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0)
	seen := make(map[string]bool)
	for _, rec := range MatchItem(records, itemID) {
		item, _ := ParseItem(rec.Record)
		partials := rec.PartialSignatures
		if partials == nil {
			partials = []PartialSignature{}
		}

		r := QueryResult{
			NodeID:            item.Node,
			ItemID:            item.ItemID,
			Quantity:          item.Quantity,
			Price:             item.Price,
			Signature:         rec.Signature,
			Status:            rec.DisplayStatus(),
			IsPrimary:         rec.IsPrimary,
			PartialSignatures: partials,
		}

		key, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		results = append(results, r)
	}

	return results, nil
}

// MatchItem filters records whose item id equals itemID; an empty itemID
// keeps every parseable record.
func MatchItem(records []Record, itemID string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		item, ok := ParseItem(rec.Record)
		if !ok {
			continue
		}
		if itemID == "" || item.ItemID == itemID {
			out = append(out, rec)
		}
	}
	return out
}
