// Package sheet serializes recognized tables into an xlsx workbook,
// one sheet per table, headers first, flat rows with no styling.
package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
)

// Writer implements pipeline.Writer on top of excelize.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Write(tables pipeline.TableSet, path string) error {
	if len(tables.Tables) == 0 {
		return fmt.Errorf("no tables to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, table := range tables.Tables {
		name := fmt.Sprintf("Table%d", i+1)
		if i == 0 {
			// Rename the default sheet rather than leaving an empty one.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("add sheet %s: %w", name, err)
			}
		}
		if err := writeTable(f, name, table); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, table pipeline.Table) error {
	rowIdx := 1
	if len(table.Headers) > 0 {
		if err := setRow(f, sheet, rowIdx, table.Headers); err != nil {
			return err
		}
		rowIdx++
	}
	for _, row := range table.Rows {
		// Ragged rows are written as-is; short rows leave trailing
		// cells empty.
		if err := setRow(f, sheet, rowIdx, row); err != nil {
			return err
		}
		rowIdx++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d on %s: %w", row, sheet, err)
	}
	return nil
}
