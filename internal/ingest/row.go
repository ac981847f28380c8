package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Column identifies a known inventory field
type Column int

const (
	ColName Column = iota
	ColManufacturer
	ColGenericName
	ColPackSize
	ColPrice
	ColMRP
	ColStock
	ColRestricted
	ColCategory
	ColImageURL
)

// headerAliases maps normalized header names onto columns. Exports from
// different suppliers name the same field differently.
var headerAliases = map[string]Column{
	"name":                  ColName,
	"medicine_name":         ColName,
	"product_name":          ColName,
	"drug_name":             ColName,
	"manufacturer":          ColManufacturer,
	"manufacturer_name":     ColManufacturer,
	"company":               ColManufacturer,
	"marketer":              ColManufacturer,
	"generic_name":          ColGenericName,
	"generic":               ColGenericName,
	"composition":           ColGenericName,
	"short_composition1":    ColGenericName,
	"salt":                  ColGenericName,
	"pack_size":             ColPackSize,
	"pack_size_label":       ColPackSize,
	"packsize":              ColPackSize,
	"pack":                  ColPackSize,
	"price":                 ColPrice,
	"selling_price":         ColPrice,
	"sale_price":            ColPrice,
	"mrp":                   ColMRP,
	"stock":                 ColStock,
	"quantity":              ColStock,
	"qty":                   ColStock,
	"requires_prescription": ColRestricted,
	"prescription_required": ColRestricted,
	"rx_required":           ColRestricted,
	"schedule_h":            ColRestricted,
	"restricted":            ColRestricted,
	"category":              ColCategory,
	"type":                  ColCategory,
	"dosage_form":           ColCategory,
	"image_url":             ColImageURL,
	"image":                 ColImageURL,
}

// restrictedValues are the flag spellings that mark a restricted drug
var restrictedValues = map[string]bool{
	"yes":        true,
	"y":          true,
	"true":       true,
	"1":          true,
	"x":          true,
	"h":          true,
	"h1":         true,
	"schedule h": true,
}

// maxAmount is the first value the catalog's DECIMAL(10, 2) columns cannot hold
var maxAmount = decimal.New(1, 8)

// columnWidths bounds the text columns so one oversized cell is skipped
// instead of failing the whole load
var columnWidths = map[Column]int{
	ColName:         255,
	ColManufacturer: 255,
	ColPackSize:     100,
	ColImageURL:     500,
}

// Header maps columns onto positions in a CSV record
type Header map[Column]int

// ParseHeader reads the header row. Unknown columns are ignored; the first
// occurrence of a column wins.
func ParseHeader(record []string) (Header, error) {
	h := make(Header)
	for i, raw := range record {
		key := normalizeHeader(raw)
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, seen := h[col]; !seen {
			h[col] = i
		}
	}

	if _, ok := h[ColName]; !ok {
		return nil, fmt.Errorf("header has no name column")
	}
	if _, ok := h[ColPrice]; !ok {
		return nil, fmt.Errorf("header has no price column")
	}
	return h, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, s)
}

func (h Header) field(record []string, col Column) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c Column) String() string {
	switch c {
	case ColName:
		return "name"
	case ColManufacturer:
		return "manufacturer"
	case ColGenericName:
		return "generic name"
	case ColPackSize:
		return "pack size"
	case ColPrice:
		return "price"
	case ColMRP:
		return "mrp"
	case ColStock:
		return "stock"
	case ColRestricted:
		return "restricted flag"
	case ColCategory:
		return "category"
	case ColImageURL:
		return "image url"
	}
	return fmt.Sprintf("column(%d)", int(c))
}

// Row is one validated inventory record
type Row struct {
	Name         string
	Manufacturer string
	GenericName  string
	PackSize     string
	Price        decimal.Decimal
	MRP          decimal.Decimal
	Stock        int
	Restricted   bool
	Category     string
	ImageURL     string
}

// Skip records why a data row was not imported. Line is the 1-based line of
// the row in the source file.
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseRow validates record against h. A non-empty reason means the row must
// be skipped.
func ParseRow(h Header, record []string, requireManufacturer bool) (Row, string) {
	row := Row{
		Name:         h.field(record, ColName),
		Manufacturer: h.field(record, ColManufacturer),
		GenericName:  h.field(record, ColGenericName),
		PackSize:     h.field(record, ColPackSize),
		Category:     h.field(record, ColCategory),
		ImageURL:     h.field(record, ColImageURL),
	}

	if row.Name == "" {
		return row, "missing name"
	}
	if requireManufacturer && row.Manufacturer == "" {
		return row, "missing manufacturer"
	}
	for col, width := range columnWidths {
		if utf8.RuneCountInString(h.field(record, col)) > width {
			return row, fmt.Sprintf("%s longer than %d characters", col, width)
		}
	}

	rawPrice := h.field(record, ColPrice)
	if rawPrice == "" {
		return row, "missing price"
	}
	price, err := parseAmount(rawPrice)
	if err != nil {
		return row, fmt.Sprintf("invalid price %q", rawPrice)
	}
	if price.IsNegative() {
		return row, "negative price"
	}
	if price.GreaterThanOrEqual(maxAmount) {
		return row, "price out of range"
	}
	row.Price = price

	row.MRP = price
	if rawMRP := h.field(record, ColMRP); rawMRP != "" {
		mrp, err := parseAmount(rawMRP)
		if err != nil || mrp.IsNegative() || mrp.GreaterThanOrEqual(maxAmount) {
			return row, fmt.Sprintf("invalid mrp %q", rawMRP)
		}
		row.MRP = mrp
	}

	if rawStock := h.field(record, ColStock); rawStock != "" {
		stock, err := strconv.Atoi(rawStock)
		if err != nil {
			return row, fmt.Sprintf("invalid stock %q", rawStock)
		}
		if stock < 0 {
			return row, "negative stock"
		}
		row.Stock = stock
	}

	row.Restricted = ParseRestricted(h.field(record, ColRestricted))
	return row, ""
}

// ParseRestricted interprets a restricted-drug flag cell
func ParseRestricted(s string) bool {
	return restrictedValues[strings.Join(strings.Fields(strings.ToLower(s)), " ")]
}

var amountCleaner = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "INR", "", ",", "", " ", "")

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(amountCleaner.Replace(s))
}
