package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/config"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/node"
	"github.com/Caqil/harn-ledger/pkg/pbft"
	"github.com/Caqil/harn-ledger/pkg/render"
)

func startServer(t *testing.T) string {
	t.Helper()

	n, err := node.Build(config.Default(), node.Options{Logger: logger.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = n.Close() })

	srv, err := api.New(api.Config{
		Engine:      n.Engine,
		Coordinator: n.Coordinator,
		Officer:     n.Officer,
		RandomVals:  n.RandomVals,
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()

	root := rootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--server", url))
	err := root.Execute()
	return out.String(), err
}

func TestSubmitAndWait(t *testing.T) {
	url := startServer(t)

	out, err := run(t, url, "submit", "--item", "007", "--quantity", "400", "--price", "12000", "--wait", "--interval", "10ms")
	if err != nil {
		t.Fatalf("submit error = %v", err)
	}
	if !strings.Contains(out, render.CommittedBanner) {
		t.Errorf("missing commit banner:\n%s", out)
	}
}

func TestSubmitJSON(t *testing.T) {
	url := startServer(t)

	out, err := run(t, url, "submit", "--format", "json", "--node", "B", "--record", "B:002:10:5")
	if err != nil {
		t.Fatalf("submit error = %v", err)
	}
	var res pbft.SubmitResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !res.ConsensusReached || res.Sequence != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSubmitRequiresItem(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "submit"); err == nil {
		t.Error("expected missing item to fail")
	}
}

func TestQueryAll(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "submit", "--item", "003", "--quantity", "1", "--price", "2"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, url, "query", "--format", "json", "--all", "003")
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	var results []api.QueryResponse
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 4 {
		t.Fatalf("got %d replica results, want 4", len(results))
	}
	for _, r := range results {
		if r.Count != 1 {
			t.Errorf("node %s count = %d, want 1", r.NodeQueried, r.Count)
		}
	}
}

func TestVerifyQueryDecrypt(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "submit", "--item", "009", "--quantity", "5", "--price", "50"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, url, "verify-query", "--format", "json", "--decrypt", "009")
	if err != nil {
		t.Fatalf("verify-query error = %v", err)
	}
	var res api.DecryptResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !res.Success || res.Format != "json" {
		t.Errorf("decrypt = %+v", res)
	}
}

func TestStatusArguments(t *testing.T) {
	url := startServer(t)

	if _, err := run(t, url, "status", "abc"); err == nil {
		t.Error("expected bad sequence to fail")
	}
	out, err := run(t, url, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if out == "" {
		t.Error("empty system status")
	}
}

func TestViewChangeRejected(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "view-change", "C", "1"); err == nil {
		t.Error("expected view change by the wrong node to fail")
	}
	if _, err := run(t, url, "view-change", "B", "1"); err != nil {
		t.Errorf("view change error = %v", err)
	}
}

func TestWalkthroughSigners(t *testing.T) {
	url := startServer(t)

	out, err := run(t, url, "walkthrough", "--format", "json", "--signers", "A,C", "hello")
	if err != nil {
		t.Fatalf("walkthrough error = %v", err)
	}
	var res api.WalkthroughResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Valid || len(res.Signers) != 2 {
		t.Errorf("walkthrough = %+v", res)
	}
}

func TestBadFormat(t *testing.T) {
	if _, err := run(t, "http://127.0.0.1:1", "node-info", "--format", "xml"); err == nil {
		t.Error("expected unknown format to fail")
	}
}
