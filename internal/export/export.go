// Package export renders transaction reports as CSV or XML.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/beevik/etree"
	"github.com/gocarina/gocsv"
)

// Format is a supported report format
type Format string

const (
	FormatCSV Format = "csv"
	FormatXML Format = "xml"
)

// ParseFormat validates a format name; an empty name selects CSV
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXML:
		return FormatXML, nil
	}
	return "", models.NewValidationError("format", fmt.Sprintf("unsupported export format %q", s))
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXML {
		return "application/xml"
	}
	return "text/csv"
}

// Write renders txns in the given format
func Write(w io.Writer, f Format, owner string, txns []models.Transaction) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, txns)
	case FormatXML:
		return WriteXML(w, owner, txns)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// csvRow is one line of the CSV report
type csvRow struct {
	Date     string `csv:"date"`
	Name     string `csv:"name"`
	Category string `csv:"category"`
	Type     string `csv:"type"`
	Amount   string `csv:"amount"`
}

// WriteCSV writes one row per transaction with a header line
func WriteCSV(w io.Writer, txns []models.Transaction) error {
	rows := make([]csvRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, csvRow{
			Date:     t.Date.Format("2006-01-02"),
			Name:     t.Name,
			Category: t.Category,
			Type:     string(t.Type),
			Amount:   t.Amount.StringFixed(2),
		})
	}
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteXML writes the transactions as a <transactions> document
func WriteXML(w io.Writer, owner string, txns []models.Transaction) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("transactions")
	root.CreateAttr("owner", owner)
	root.CreateAttr("count", strconv.Itoa(len(txns)))
	for _, t := range txns {
		el := root.CreateElement("transaction")
		el.CreateAttr("id", t.ID.String())
		el.CreateAttr("type", string(t.Type))
		if t.RuleID != nil {
			el.CreateAttr("rule", t.RuleID.String())
		}
		el.CreateElement("date").SetText(t.Date.Format("2006-01-02"))
		el.CreateElement("name").SetText(t.Name)
		el.CreateElement("category").SetText(t.Category)
		el.CreateElement("amount").SetText(t.Amount.StringFixed(2))
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("error writing XML data: %w", err)
	}
	return nil
}
