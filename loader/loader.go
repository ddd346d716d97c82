// Package loader reads the operator's account list from CSV or XLSX.
package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"faturas/model"
)

var headerAliases = map[string]string{
	"distribuidora":  "distributor",
	"distributor_id": "distributor",
	"uc":             "account",
	"account_code":   "account",
	"login":          "login",
	"login_id":       "login",
	"documento":      "login",
	"senha":          "password",
	"password":       "password",
}

var requiredColumns = []string{"distributor", "account", "login", "password"}

// LoadAccounts reads records from a .csv or .xlsx file, in file order.
func LoadAccounts(path string, log logrus.FieldLogger) ([]model.AccountRecord, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ParseWorkbook(f, log)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return ParseCSV(bytes.NewReader(data), log)
	}
}

// ParseWorkbook reads the first sheet of an account workbook.
func ParseWorkbook(f *excelize.File, log logrus.FieldLogger) ([]model.AccountRecord, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows, log)
}

// ParseCSV accepts UTF-8 (with or without BOM) or Windows-1252 input,
// separated by ';' or ','.
func ParseCSV(r io.Reader, log logrus.FieldLogger) ([]model.AccountRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		data, _, err = transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return parseRows(rows, log)
}

func delimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func parseRows(rows [][]string, log logrus.FieldLogger) ([]model.AccountRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("account list is empty")
	}
	colIndex, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var records []model.AccountRecord
	for i, row := range rows[1:] {
		line := i + 2
		get := func(key string) string {
			if idx := colIndex[key]; idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		if isBlank(row) {
			continue
		}
		id, err := strconv.Atoi(get("distributor"))
		if err != nil {
			log.WithField("line", line).Warn("invalid distributor id, skipping row")
			continue
		}
		code := get("account")
		if code == "" || get("login") == "" {
			log.WithField("line", line).Warn("missing account code or login, skipping row")
			continue
		}

		records = append(records, model.AccountRecord{
			DistributorID: id,
			AccountCode:   code,
			LoginID:       get("login"),
			Password:      get("password"),
		})
	}
	return records, nil
}

func columnIndex(header []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, name := range header {
		if canon, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, dup := colIndex[canon]; !dup {
				colIndex[canon] = i
			}
		}
	}
	for _, req := range requiredColumns {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}
	return colIndex, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
