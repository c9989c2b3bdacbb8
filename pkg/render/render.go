// Package render formats service responses for people: auto-escaped HTML
// fragments for embedding in a page and plain text for terminals.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

// Format selects an output representation
type Format string

// Supported formats
const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat
var ErrUnknownFormat = errors.New("unknown output format")

// CommittedBanner is shown once a record is on every live ledger
const CommittedBanner = "Record committed to blockchain"

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatHTML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var funcs = map[string]any{
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
	"optional": func(v *int64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprint(*v)
	},
	"banner": func() string { return CommittedBanner },
	"inc":    func(i int) int { return i + 1 },
}

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("html").Funcs(funcs).Parse(htmlSource))
	textTemplates = texttemplate.Must(texttemplate.New("text").Funcs(funcs).Parse(textSource))
)

func execute(w io.Writer, f Format, name string, data, raw any) error {
	switch f {
	case FormatHTML:
		return htmlTemplates.ExecuteTemplate(w, name, data)
	case FormatText:
		return textTemplates.ExecuteTemplate(w, name, data)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// submitView adds the final commit decision to a submit result
type submitView struct {
	*pbft.SubmitResult
	Committed bool
}

// Submit renders a submission with its consensus trace. committed is the
// final state after any polling.
func Submit(w io.Writer, f Format, res *pbft.SubmitResult, committed bool) error {
	return execute(w, f, "submit", submitView{SubmitResult: res, Committed: committed}, res)
}

// Status renders the state of one sequence
func Status(w io.Writer, f Format, st *pbft.StatusResult) error {
	return execute(w, f, "status", st, st)
}

// SystemStatus renders cluster totals
func SystemStatus(w io.Writer, f Format, st *pbft.SystemStatus) error {
	return execute(w, f, "system", st, st)
}

// ViewChange renders a completed view change
func ViewChange(w io.Writer, f Format, res *pbft.ViewChangeResult) error {
	return execute(w, f, "viewchange", res, res)
}

// Query renders one or more replica query results
func Query(w io.Writer, f Format, results ...*api.QueryResponse) error {
	return execute(w, f, "query", results, results)
}

// NodeInfo renders the PKG parameters and signer table
func NodeInfo(w io.Writer, f Format, info *api.NodeInfoResponse) error {
	rows := make([]api.NodeInfo, 0, len(info.Order))
	for _, name := range info.Order {
		rows = append(rows, info.Nodes[name])
	}
	data := struct {
		PKG  api.PKGInfo
		Rows []api.NodeInfo
	}{info.PKG, rows}
	return execute(w, f, "nodeinfo", data, info)
}

// MultiSign renders a combined signature and its shares
func MultiSign(w io.Writer, f Format, res *api.MultiSignResponse) error {
	return execute(w, f, "multisign", res, res)
}

// Sign renders one signer's share
func Sign(w io.Writer, f Format, res *api.SignResponse) error {
	return execute(w, f, "sign", res, res)
}

// VerifyQuery renders a sealed verified query
func VerifyQuery(w io.Writer, f Format, res *api.VerifyQueryResponse) error {
	return execute(w, f, "verifyquery", res, res)
}

// Decrypt renders an opened envelope
func Decrypt(w io.Writer, f Format, res *api.DecryptResponse) error {
	data := struct {
		Format string
		Body   string
	}{Format: res.Format}

	if s, ok := res.Decrypted.(string); ok {
		data.Body = s
	} else {
		b, err := json.MarshalIndent(res.Decrypted, "", "  ")
		if err != nil {
			return err
		}
		data.Body = string(b)
	}
	return execute(w, f, "decrypt", data, res)
}

// Walkthrough renders every step of a signing session
func Walkthrough(w io.Writer, f Format, wt *api.WalkthroughResponse) error {
	return execute(w, f, "walkthrough", wt, wt)
}

// Fault renders a fault state change
func Fault(w io.Writer, f Format, res *api.FaultResponse) error {
	return execute(w, f, "fault", res, res)
}

// Error renders an error banner
func Error(w io.Writer, f Format, err error) error {
	return execute(w, f, "error", err.Error(), api.ErrorResponse{Error: err.Error()})
}
