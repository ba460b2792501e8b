// Package report writes verification results in the formats the CLI offers.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/codeGROOVE-dev/fedifinder/pkg/verify"
	"github.com/nao1215/markdown"
)

// Format selects an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"  // Mastodon "follows" import file, verified handles only
	FormatText     Format = "text" // tab-aligned columns
)

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatMarkdown, FormatCSV, FormatText:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (want json, markdown, csv or text)", ErrUnknownFormat, s)
	}
}

// Report is the output of one pipeline run.
type Report struct {
	Results  []verify.Result `json:"results"`
	Summary  verify.Summary  `json:"summary"`
	Profiles int             `json:"profiles"` // number of source profiles scanned
}

// VerifiedOnly returns a copy of r holding only verified results. The
// summary still describes the whole run.
func (r *Report) VerifiedOnly() *Report {
	out := &Report{Summary: r.Summary, Profiles: r.Profiles, Results: []verify.Result{}}
	for _, res := range r.Results {
		if res.Verified {
			out.Results = append(out.Results, res)
		}
	}
	return out
}

// Write encodes r to w in the given format.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatMarkdown:
		return writeMarkdown(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatText:
		return writeText(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func writeJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeMarkdown(w io.Writer, r *Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("Fediverse handles")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Profiles scanned", "Handles", "Verified", "Not found", "Failed"},
		Rows: [][]string{{
			strconv.Itoa(r.Profiles),
			strconv.Itoa(r.Summary.Total),
			strconv.Itoa(r.Summary.Verified),
			strconv.Itoa(r.Summary.NotFound),
			strconv.Itoa(r.Summary.Failed),
		}},
	})
	md.PlainText("")

	if len(r.Results) == 0 {
		md.PlainText("No handles found.")
		return md.Build()
	}

	md.H2("Results")
	md.PlainText("")
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		profileURL := ""
		if res.ProfileURL != "" {
			profileURL = "[" + res.ProfileURL + "](" + res.ProfileURL + ")"
		}
		rows = append(rows, []string{
			"`" + res.Handle.String() + "`",
			statusText(res.Status),
			profileURL,
			strings.Join(res.Sources, ", "),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Handle", "Status", "Profile", "Mentioned by"},
		Rows:   rows,
	})

	return md.Build()
}

func statusText(s verify.Status) string {
	switch s {
	case verify.StatusVerified:
		return "✅ verified"
	case verify.StatusNotFound:
		return "❌ not found"
	default:
		return "⚠️ lookup failed"
	}
}

// writeCSV writes the header Mastodon expects for Settings > Import > Following list.
func writeCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Account address", "Show boosts", "Notify on new posts", "Languages"}); err != nil {
		return err
	}
	for _, res := range r.Results {
		if !res.Verified {
			continue
		}
		if err := cw.Write([]string{res.Handle.Acct(), "true", "false", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tSTATUS\tPROFILE\tSOURCES")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Handle, res.Status, res.ProfileURL, strings.Join(res.Sources, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d handles from %d profiles: %d verified, %d not found, %d failed\n",
		r.Summary.Total, r.Profiles, r.Summary.Verified, r.Summary.NotFound, r.Summary.Failed)
	return err
}
