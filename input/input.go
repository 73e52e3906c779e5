// Package input reads share links out of tabular files.
package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/alanbriolat/video-batch/generic"
)

var (
	ErrNoLinkColumn      = errors.New("no column containing links found")
	ErrUnsupportedFormat = errors.New("unsupported input format")
	ErrEmptyInput        = errors.New("input has no header row")
)

var (
	spreadsheetExtensions = generic.NewSet(".xlsx", ".xlsm")
	csvExtensions         = generic.NewSet(".csv")
	textExtensions        = generic.NewSet(".txt")
)

// ReadLinks returns the non-blank cells of the link column of the file at path, in order, with surrounding whitespace
// removed. The first row is the header; column names the link column, or if empty it is found with FindLinkColumn.
// Spreadsheets use their first sheet. A .txt file has no header and holds one link per line.
func ReadLinks(path string, column string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case spreadsheetExtensions.Contains(ext):
		rows, err := readSpreadsheet(path)
		if err != nil {
			return nil, err
		}
		return linksFromRows(rows, column)
	case csvExtensions.Contains(ext):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err := readCSV(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return linksFromRows(rows, column)
	case textExtensions.Contains(ext):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readLines(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// FindLinkColumn returns the index of the first header containing "链接" or, ignoring case, "url".
func FindLinkColumn(headers []string) (int, error) {
	for i, h := range headers {
		if strings.Contains(h, "链接") || strings.Contains(strings.ToLower(h), "url") {
			return i, nil
		}
	}
	return -1, ErrNoLinkColumn
}

func linksFromRows(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	headers := rows[0]
	index := -1
	if column != "" {
		for i, h := range headers {
			if strings.TrimSpace(h) == column {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%w: no column named %q", ErrNoLinkColumn, column)
		}
	} else {
		var err error
		if index, err = FindLinkColumn(headers); err != nil {
			return nil, err
		}
	}

	var links []string
	for _, row := range rows[1:] {
		if index >= len(row) {
			continue
		}
		if link := strings.TrimSpace(row[index]); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readLines(r io.Reader) ([]string, error) {
	var links []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if link := strings.TrimSpace(scanner.Text()); link != "" {
			links = append(links, link)
		}
	}
	return links, scanner.Err()
}
