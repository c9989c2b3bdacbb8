package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/harn"
	"github.com/Caqil/harn-ledger/pkg/ledger"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

func sampleSubmit() *pbft.SubmitResult {
	return &pbft.SubmitResult{
		Status:        "Consensus committed",
		RecordStatus:  pbft.StateCommitted,
		Record:        "A:item1:10:100",
		Signature:     "111",
		Sequence:      4,
		View:          0,
		PreparesCount: 3,
		CommitsCount:  4,
		PrePrepare:    pbft.Vote{Sender: "A", Record: "A:item1:10:100", Signature: "111"},
		Prepares:      []pbft.Vote{{Sender: "B", Signature: "222"}, {Sender: "C", Signature: "333"}, {Sender: "D", Signature: "444"}},
		Commits:       []pbft.Vote{{Sender: "A", Signature: "555"}},
		IsPrimary:     true,
		Primary:       "A",
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"HTML", FormatHTML, false},
		{" json ", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubmitBanner(t *testing.T) {
	for _, f := range []Format{FormatText, FormatHTML} {
		var committed, pending bytes.Buffer
		if err := Submit(&committed, f, sampleSubmit(), true); err != nil {
			t.Fatalf("Submit(%s) error = %v", f, err)
		}
		if err := Submit(&pending, f, sampleSubmit(), false); err != nil {
			t.Fatalf("Submit(%s) error = %v", f, err)
		}

		if !strings.Contains(committed.String(), CommittedBanner) {
			t.Errorf("%s: committed output lacks banner:\n%s", f, committed.String())
		}
		if strings.Contains(pending.String(), CommittedBanner) {
			t.Errorf("%s: pending output shows banner", f)
		}
		for _, want := range []string{"Prepare", "(3)", "3 prepares, 4 commits", "Yes"} {
			if !strings.Contains(committed.String(), want) {
				t.Errorf("%s: output lacks %q", f, want)
			}
		}
	}
}

func TestStatusViewMismatch(t *testing.T) {
	st := &pbft.StatusResult{
		State:            pbft.StateCommitted,
		Sequence:         2,
		View:             0,
		RecordView:       1,
		ViewMismatch:     true,
		Commits:          4,
		RequiredPrepares: 2,
		RequiredCommits:  3,
	}
	for _, f := range []Format{FormatText, FormatHTML} {
		var buf bytes.Buffer
		if err := Status(&buf, f, st); err != nil {
			t.Fatalf("Status(%s) error = %v", f, err)
		}
		if !strings.Contains(buf.String(), "in view 1") {
			t.Errorf("%s: mismatch not reported:\n%s", f, buf.String())
		}

		buf.Reset()
		matched := *st
		matched.View, matched.ViewMismatch = 1, false
		if err := Status(&buf, f, &matched); err != nil {
			t.Fatalf("Status(%s) error = %v", f, err)
		}
		if strings.Contains(buf.String(), "in view 1") {
			t.Errorf("%s: unexpected mismatch note:\n%s", f, buf.String())
		}
	}
}

func TestHTMLEscapesRecords(t *testing.T) {
	res := sampleSubmit()
	res.PrePrepare.Record = `<script>alert("x")</script>`

	var buf bytes.Buffer
	if err := Submit(&buf, FormatHTML, res, true); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("record was not escaped:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "&lt;script&gt;") {
		t.Errorf("expected escaped record:\n%s", buf.String())
	}
}

func TestJSONMatchesResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := Submit(&buf, FormatJSON, sampleSubmit(), true); err != nil {
		t.Fatal(err)
	}

	var got pbft.SubmitResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Sequence != 4 || len(got.Prepares) != 3 {
		t.Errorf("unexpected decoded result %+v", got)
	}
}

func TestQueryRendering(t *testing.T) {
	qty := int64(10)
	results := []*api.QueryResponse{
		{Success: true, NodeQueried: "A", ItemID: "item1", Count: 1, Results: []ledger.QueryResult{
			{NodeID: "A", ItemID: "item1", Quantity: &qty, Status: "Verified by A"},
		}},
		{Success: true, NodeQueried: "B", ItemID: "item1", Results: []ledger.QueryResult{}},
	}

	var text, html bytes.Buffer
	if err := Query(&text, FormatText, results...); err != nil {
		t.Fatal(err)
	}
	if err := Query(&html, FormatHTML, results...); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"node A: 1 result(s) for item1", "quantity=10 price=-", "node B: 0 result(s)"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text output lacks %q:\n%s", want, text.String())
		}
	}
	if !strings.Contains(html.String(), "No matching records") {
		t.Errorf("html output lacks empty notice:\n%s", html.String())
	}
}

func TestNodeInfoOrder(t *testing.T) {
	info := &api.NodeInfoResponse{
		PKG:   api.PKGInfo{N: "3233", E: "17"},
		Order: []string{"B", "A"},
		Nodes: map[string]api.NodeInfo{
			"A": {ID: "A", Identity: "126", SecretKey: "9"},
			"B": {ID: "B", Identity: "127", SecretKey: "8"},
		},
	}

	var buf bytes.Buffer
	if err := NodeInfo(&buf, FormatText, info); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "PKG n = 3233") {
		t.Errorf("missing modulus:\n%s", out)
	}
	if strings.Index(out, "identity=127") > strings.Index(out, "identity=126") {
		t.Errorf("nodes not in configured order:\n%s", out)
	}
}

func TestWalkthroughNumbering(t *testing.T) {
	wt := &api.WalkthroughResponse{
		Message: "hi",
		Steps: []harn.Step{
			{Title: "PKG parameters", Values: []harn.Value{{Label: "n", Value: "3233"}}},
			{Title: "Commitments"},
		},
		Valid: true,
	}

	var buf bytes.Buffer
	if err := Walkthrough(&buf, FormatText, wt); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"1. PKG parameters", "2. Commitments", "n = 3233", "signature valid: Yes"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, buf.String())
		}
	}
}

func TestDecryptAndError(t *testing.T) {
	var buf bytes.Buffer
	res := &api.DecryptResponse{Success: true, Decrypted: map[string]any{"item_id": "item1"}, Format: "json"}
	if err := Decrypt(&buf, FormatText, res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"item_id": "item1"`) {
		t.Errorf("decrypted body missing:\n%s", buf.String())
	}

	buf.Reset()
	if err := Error(&buf, FormatHTML, errors.New("Invalid <node>")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "<p class=\"error\">Invalid &lt;node&gt;</p>\n" {
		t.Errorf("error banner = %q", buf.String())
	}
}
