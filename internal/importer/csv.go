package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

// Transaction field names accepted in a CSV field mapping.
const (
	mapDate        = "date"
	mapAmount      = "amount"
	mapDescription = "description"
	mapMerchant    = "merchant"
	mapAccount     = "account"
)

// defaultFieldMapping is used when the caller supplies no mapping. Keys are
// transaction fields, values the expected column headers.
var defaultFieldMapping = map[string]string{
	mapDate:        "date",
	mapAmount:      "amount",
	mapDescription: "description",
	mapMerchant:    "merchant",
	mapAccount:     "account",
}

// dateLayouts are tried in order when parsing a CSV date cell.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	time.RFC3339,
}

// parsedRow is one row of a batch: either a transaction or a row-level
// failure. Row numbers are 1-based over data rows, excluding the header.
type parsedRow struct {
	txn *model.Transaction
	err error
	row int
}

// parseCSV reads every data row of a CSV batch. Malformed rows come back as
// row-level errors; an unreadable file or a header missing the required
// columns is a batch-level failure.
func parseCSV(reader io.Reader, householdID string, fieldMapping map[string]string) ([]parsedRow, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV header: %v", common.ErrUnreadableFile, err)
	}

	mapping := fieldMapping
	if len(mapping) == 0 {
		mapping = defaultFieldMapping
	}

	columns, err := resolveColumns(header, mapping)
	if err != nil {
		return nil, err
	}

	var rows []parsedRow
	rowNum := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			rows = append(rows, parsedRow{row: rowNum, err: fmt.Errorf("malformed row: %w", err)})
			continue
		}

		txn, err := rowToTransaction(record, columns, householdID)
		if err != nil {
			rows = append(rows, parsedRow{row: rowNum, err: err})
			continue
		}
		rows = append(rows, parsedRow{row: rowNum, txn: txn})
	}

	return rows, nil
}

// columnIndexes locates each mapped transaction field in the header.
type columnIndexes struct {
	date        int
	amount      int
	description int
	merchant    int
	account     int
}

// resolveColumns matches the field mapping against the header. Date,
// amount, and description are required; the whole batch fails without
// them since no row could ever parse.
func resolveColumns(header []string, mapping map[string]string) (columnIndexes, error) {
	indexOf := func(field string) int {
		want := strings.ToLower(strings.TrimSpace(mapping[field]))
		if want == "" {
			return -1
		}
		for i, col := range header {
			if strings.ToLower(strings.TrimSpace(col)) == want {
				return i
			}
		}
		return -1
	}

	columns := columnIndexes{
		date:        indexOf(mapDate),
		amount:      indexOf(mapAmount),
		description: indexOf(mapDescription),
		merchant:    indexOf(mapMerchant),
		account:     indexOf(mapAccount),
	}

	if columns.date < 0 || columns.amount < 0 || columns.description < 0 {
		return columns, fmt.Errorf("%w: header lacks required date/amount/description columns",
			common.ErrUnreadableFile)
	}
	return columns, nil
}

func rowToTransaction(record []string, columns columnIndexes, householdID string) (*model.Transaction, error) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(cell(columns.date))
	if err != nil {
		return nil, err
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(cell(columns.amount), ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", cell(columns.amount))
	}

	description := cell(columns.description)
	if description == "" {
		return nil, errors.New("missing description")
	}

	return &model.Transaction{
		HouseholdID:  householdID,
		AccountID:    cell(columns.account),
		Date:         date,
		Amount:       amount,
		Description:  description,
		MerchantName: cell(columns.merchant),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}
