package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/xuri/excelize/v2"
)

// Table is a fully buffered import file.
type Table struct {
	Header []string
	Rows   []models.RawRow
}

// FormatOf picks the parser from the file extension.
func FormatOf(fileName string) (models.ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return models.ImportFormatCSV, nil
	case ".xlsx":
		return models.ImportFormatXLSX, nil
	default:
		return "", apperrors.Validation("INVALID_FORMAT", "only CSV and XLSX files are supported, got %q", fileName)
	}
}

// Parse reads r in the given format. The first row is the header.
func Parse(r io.Reader, format models.ImportFormat) (*Table, error) {
	switch format {
	case models.ImportFormatCSV:
		return ParseCSV(r)
	case models.ImportFormatXLSX:
		return ParseXLSX(r)
	default:
		return nil, apperrors.Validation("INVALID_FORMAT", "unsupported import format %q", format)
	}
}

// ParseCSV parses a CSV file into rows. Every record must have as many fields
// as the header.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, parseError(err, "failed to read CSV header")
	}
	if err := normalizeHeader(header); err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err, "failed to read CSV record")
		}
		table.Rows = append(table.Rows, toRow(header, record))
	}
	return table, nil
}

// ParseXLSX parses the first sheet of an Excel file, preferring one named
// "Products".
func ParseXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseError(err, "failed to open Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.Validation("PARSE_ERROR", "File parse error: no sheets found in Excel file")
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, parseError(err, "failed to read sheet")
	}
	if len(excelRows) == 0 {
		return &Table{}, nil
	}

	header := excelRows[0]
	if err := normalizeHeader(header); err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	for _, excelRow := range excelRows[1:] {
		if blank(excelRow) {
			continue
		}
		table.Rows = append(table.Rows, toRow(header, excelRow))
	}
	return table, nil
}

// toRow maps a record onto the header. Cells missing at the end of a short
// record are present with an empty value. Cell values are kept verbatim;
// only the header is normalized.
func toRow(header, record []string) models.RawRow {
	row := make(models.RawRow, len(header))
	for i, col := range header {
		value := ""
		if i < len(record) {
			value = record[i]
		}
		row[col] = value
	}
	return row
}

func normalizeHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for i := range header {
		col := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		// Remove required marker if present
		col = strings.TrimSuffix(col, " *")
		if col == "" {
			return apperrors.Validation("PARSE_ERROR", "File parse error: column %d has an empty header", i+1)
		}
		if seen[col] {
			return apperrors.Validation("PARSE_ERROR", "File parse error: duplicate column %q", col)
		}
		seen[col] = true
		header[i] = col
	}
	return nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseError(err error, msg string) error {
	return &apperrors.Error{
		Kind:    apperrors.KindValidation,
		Code:    "PARSE_ERROR",
		Message: "File parse error: " + msg,
		Err:     err,
	}
}
