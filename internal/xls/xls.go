// Package xls writes report rows into XLSX files: one header row followed by
// typed data cells, either paginated (scheduled reports) or in a single sheet
// (on-demand reports).
package xls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultPageSize = 100
	Extension       = ".xlsx"
	ContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheet = "Sheet1"
)

type cellKind int

const (
	kindText cellKind = iota
	kindNumber
	kindBool
)

// Cell is a typed value; the kind decides which excelize setter is used.
type Cell struct {
	kind    cellKind
	text    string
	number  float64
	boolean bool
}

func Text(s string) Cell { return Cell{kind: kindText, text: s} }

func Number(n float64) Cell { return Cell{kind: kindNumber, number: n} }

func Int(n int64) Cell { return Number(float64(n)) }

func Bool(b bool) Cell { return Cell{kind: kindBool, boolean: b} }

type Column[T any] struct {
	Header string
	Cell   func(T) (Cell, error)
}

// Document is one spreadsheet file under construction.
type Document struct {
	f      *excelize.File
	path   string
	closed bool
}

// Create opens a new document named by a random identifier inside dir.
func Create(dir string) (*Document, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reports dir: %w", err)
	}
	return &Document{
		f:    excelize.NewFile(),
		path: filepath.Join(dir, uuid.NewString()+Extension),
	}, nil
}

func (d *Document) Path() string { return d.path }

func (d *Document) Name() string { return filepath.Base(d.path) }

// WriteRow fills the 1-based row starting at column A.
func (d *Document) WriteRow(row int, cells []Cell) error {
	for i, c := range cells {
		axis, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := d.set(axis, c); err != nil {
			return fmt.Errorf("cell %s: %w", axis, err)
		}
	}
	return nil
}

func (d *Document) SetText(axis, text string) error {
	return d.f.SetCellStr(sheet, axis, text)
}

func (d *Document) set(axis string, c Cell) error {
	switch c.kind {
	case kindNumber:
		return d.f.SetCellFloat(sheet, axis, c.number, -1, 64)
	case kindBool:
		return d.f.SetCellBool(sheet, axis, c.boolean)
	default:
		return d.f.SetCellStr(sheet, axis, c.text)
	}
}

// Save writes the file to disk and releases the workbook, whether or not the
// write succeeded.
func (d *Document) Save() error {
	err := d.f.SaveAs(d.path)
	if closeErr := d.close(); err == nil {
		err = closeErr
	}
	return err
}

// Discard releases the workbook if still open and removes whatever reached
// the disk.
func (d *Document) Discard() {
	_ = d.close()
	_ = os.Remove(d.path)
}

func (d *Document) close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.f.Close()
}

func writeDocument[T any](dir string, rows []T, cols []Column[T]) (*Document, error) {
	doc, err := Create(dir)
	if err != nil {
		return nil, err
	}

	header := make([]Cell, len(cols))
	for i, col := range cols {
		header[i] = Text(col.Header)
	}
	if err := doc.WriteRow(1, header); err != nil {
		doc.Discard()
		return nil, err
	}

	cells := make([]Cell, len(cols))
	for i, r := range rows {
		for j, col := range cols {
			c, err := col.Cell(r)
			if err != nil {
				doc.Discard()
				return nil, fmt.Errorf("row %d, column %q: %w", i, col.Header, err)
			}
			cells[j] = c
		}
		if err := doc.WriteRow(i+2, cells); err != nil {
			doc.Discard()
			return nil, err
		}
	}

	if err := doc.Save(); err != nil {
		_ = os.Remove(doc.path)
		return nil, err
	}
	return doc, nil
}

// WriteAll puts every row into one sheet and keeps the file. It returns the
// file path.
func WriteAll[T any](dir string, rows []T, cols []Column[T]) (string, error) {
	doc, err := writeDocument(dir, rows, cols)
	if err != nil {
		return "", err
	}
	return doc.Path(), nil
}

type Page struct {
	Path  string
	Name  string
	Index int
	Rows  int
}

// UnsentError is returned by Paginate when emit fails. The page file is left
// on disk so it can be resent.
type UnsentError struct {
	Page Page
	Err  error
}

func (e *UnsentError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Page.Index, e.Page.Path, e.Err)
}

func (e *UnsentError) Unwrap() error { return e.Err }

// Paginate splits rows into files of at most pageSize data rows, in input
// order. Each saved page is handed to emit and removed once emit succeeds.
// A failed emit stops the run with an *UnsentError; that page stays on disk
// and the count of pages emitted so far is returned with the error.
func Paginate[T any](ctx context.Context, dir string, rows []T, cols []Column[T], pageSize int, emit func(context.Context, Page) error) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pages := 0
	for start := 0; start < len(rows); start += pageSize {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		end := min(start+pageSize, len(rows))
		doc, err := writeDocument(dir, rows[start:end], cols)
		if err != nil {
			return pages, fmt.Errorf("page %d: %w", pages, err)
		}

		page := Page{Path: doc.Path(), Name: doc.Name(), Index: pages, Rows: end - start}
		if err := emit(ctx, page); err != nil {
			return pages, &UnsentError{Page: page, Err: err}
		}
		pages++
		if err := os.Remove(page.Path); err != nil {
			return pages, fmt.Errorf("page %d: remove: %w", page.Index, err)
		}
	}

	return pages, nil
}
