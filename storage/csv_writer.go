package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"energysage-scraper/models"
)

// utf8BOM is prepended to the spreadsheet-facing sample and catalog files so
// Excel picks up the encoding.
const utf8BOM = "\uFEFF"

// writeQuotedRecord writes one CSV row with every field quoted, matching the
// QUOTE_ALL convention of the company and catalog files. encoding/csv only
// quotes when forced to, which breaks byte-for-byte compatibility.
func writeQuotedRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// CompanyCSVStore reads and writes the company records file
// (massachusetts_solar_installers.csv by default).
type CompanyCSVStore struct {
	path string
}

func NewCompanyCSVStore(path string) *CompanyCSVStore {
	return &CompanyCSVStore{path: path}
}

// Write creates (or truncates) the file with fully-quoted UTF-8 rows. The
// states_served column is included only when withStates is set; it joins the
// list with pipes inside the one quoted field.
func (s *CompanyCSVStore) Write(companies []models.Company, withStates bool) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("csv: create %q: %w", s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	header := []string{"id", "company_name", "description", "profile_url"}
	if withStates {
		header = append(header, "states_served")
	}
	if err := writeQuotedRecord(w, header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, c := range companies {
		row := []string{
			strconv.Itoa(c.ID),
			c.Name,
			c.Description,
			c.ProfileURL,
		}
		if withStates {
			row = append(row, strings.Join(c.StatesServed, "|"))
		}
		if err := writeQuotedRecord(w, row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	return w.Flush()
}

// Read loads the company file. hasStates reports whether the states_served
// column is already present (the migration is a one-time operation).
func (s *CompanyCSVStore) Read() (companies []models.Company, hasStates bool, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, false, fmt.Errorf("csv: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimPrefix(name, utf8BOM)] = i
	}
	statesIdx, hasStates := col["states_served"]

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, hasStates, fmt.Errorf("csv: read row: %w", err)
		}

		id, _ := strconv.Atoi(field(record, col, "id"))
		c := models.Company{
			ID:          id,
			Name:        field(record, col, "company_name"),
			Description: field(record, col, "description"),
			ProfileURL:  field(record, col, "profile_url"),
		}
		if hasStates && statesIdx < len(record) && record[statesIdx] != "" {
			c.StatesServed = strings.Split(record[statesIdx], "|")
		}
		companies = append(companies, c)
	}

	return companies, hasStates, nil
}

// Backup copies the file to path.bak before an in-place migration.
func (s *CompanyCSVStore) Backup() (string, error) {
	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("csv: open for backup: %w", err)
	}
	defer src.Close()

	bakPath := s.path + ".bak"
	dst, err := os.Create(bakPath)
	if err != nil {
		return "", fmt.Errorf("csv: create backup %q: %w", bakPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("csv: copy backup: %w", err)
	}
	return bakPath, nil
}

func field(record []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}
