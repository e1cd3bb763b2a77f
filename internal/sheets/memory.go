package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	apperrors "excel-mcp/internal/errors"
)

// MemoryStore is a Store over an in-memory excelize workbook. Values written
// as numeric strings read back as numbers, as they do in Excel.
type MemoryStore struct {
	mu     sync.Mutex
	file   *excelize.File
	tables map[string]string // table name -> sheet
	auto   bool
	calls  int
}

// NewMemoryStore creates an empty workbook with a single "Sheet1".
// With autoCreate, unknown sheets and tables are created on first use.
func NewMemoryStore(autoCreate bool) *MemoryStore {
	return &MemoryStore{
		file:   excelize.NewFile(),
		tables: make(map[string]string),
		auto:   autoCreate,
	}
}

// Calls returns the number of store operations served.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// AddSheet creates a worksheet if it does not exist.
func (m *MemoryStore) AddSheet(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureSheet(name)
}

// AddTable registers a table on sheet. Row 1 of the sheet is the table header.
func (m *MemoryStore) AddTable(name, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureSheet(sheet); err != nil {
		return err
	}
	m.tables[name] = sheet
	return nil
}

// SetColumn seeds a column from row 1 downwards. Used to prepare fixtures.
func (m *MemoryStore) SetColumn(sheet, column string, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureSheet(sheet); err != nil {
		return err
	}
	col, err := ColumnNumber(column)
	if err != nil {
		return err
	}
	for i, v := range cells {
		name, _ := excelize.CoordinatesToCellName(col, i+1)
		if err := m.file.SetCellStr(sheet, name, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) ensureSheet(name string) error {
	idx, err := m.file.GetSheetIndex(name)
	if err != nil {
		return apperrors.NewValidationError("sheet_name", name, err.Error())
	}
	if idx >= 0 {
		return nil
	}
	if _, err := m.file.NewSheet(name); err != nil {
		return apperrors.NewValidationError("sheet_name", name, err.Error())
	}
	return nil
}

func (m *MemoryStore) sheet(name string) error {
	idx, err := m.file.GetSheetIndex(name)
	if err == nil && idx >= 0 {
		return nil
	}
	if m.auto {
		return m.ensureSheet(name)
	}
	return apperrors.NotFoundf("worksheet %q", name)
}

func (m *MemoryStore) ReadColumn(ctx context.Context, sheet, column string) ([]string, error) {
	col, err := ColumnNumber(column)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := m.sheet(sheet); err != nil {
		return nil, err
	}

	rows, err := m.file.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	cells := make([]string, len(rows))
	last := 0
	for i, row := range rows {
		if col-1 < len(row) {
			cells[i] = row[col-1]
			if cells[i] != "" {
				last = i + 1
			}
		}
	}
	return cells[:last], nil
}

func (m *MemoryStore) ReadRange(ctx context.Context, sheet, address string) ([][]any, error) {
	r, err := ParseRange(address)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := m.sheet(sheet); err != nil {
		return nil, err
	}

	out := make([][]any, r.Rows())
	for i := range out {
		out[i] = make([]any, r.Columns())
	}
	err = r.Cells(func(i, j int, name string) error {
		raw, err := m.file.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
		if err != nil {
			return err
		}
		out[i][j] = readValue(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryStore) WriteRange(ctx context.Context, sheet, address string, values [][]any) (RangeResult, error) {
	r, err := CheckShape(address, values)
	if err != nil {
		return RangeResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := m.sheet(sheet); err != nil {
		return RangeResult{}, err
	}

	err = r.Cells(func(i, j int, name string) error {
		v := values[i][j]
		if v == nil {
			return nil
		}
		return m.file.SetCellValue(sheet, name, writeValue(v))
	})
	if err != nil {
		return RangeResult{}, err
	}

	return RangeResult{
		Address:     sheet + "!" + r.String(),
		RowCount:    r.Rows(),
		ColumnCount: r.Columns(),
	}, nil
}

func (m *MemoryStore) AppendRows(ctx context.Context, table string, rows [][]any) (AppendResult, error) {
	if strings.TrimSpace(table) == "" {
		return AppendResult{}, apperrors.NewValidationError("table_name", nil, "required")
	}
	if len(rows) == 0 {
		return AppendResult{}, apperrors.NewValidationError("rows", nil, "at least one row required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	sheet, ok := m.tables[table]
	if !ok {
		if !m.auto {
			return AppendResult{}, apperrors.NotFoundf("table %q", table)
		}
		if err := m.ensureSheet(table); err != nil {
			return AppendResult{}, err
		}
		sheet = table
		m.tables[table] = sheet
	}

	existing, err := m.file.GetRows(sheet)
	if err != nil {
		return AppendResult{}, err
	}
	// Row 1 is the header; data starts on row 2.
	index := len(existing) - 1
	if index < 0 {
		index = 0
	}

	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			name, err := excelize.CoordinatesToCellName(j+1, index+i+2)
			if err != nil {
				return AppendResult{}, err
			}
			if err := m.file.SetCellValue(sheet, name, writeValue(v)); err != nil {
				return AppendResult{}, err
			}
		}
	}
	return AppendResult{Index: index, RowsAdded: len(rows)}, nil
}

// writeValue converts decoded JSON values to types excelize stores natively.
func writeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && strings.TrimSpace(t) != "" {
			return f
		}
		return t
	case float64, float32, int, int64, int32, bool:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func readValue(raw string) any {
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return raw
}

// MemoryBackend is a Backend of in-memory workbooks keyed by reference.
type MemoryBackend struct {
	mu         sync.Mutex
	books      map[WorkbookRef]*MemoryStore
	autoCreate bool
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend(autoCreate bool) *MemoryBackend {
	return &MemoryBackend{
		books:      make(map[WorkbookRef]*MemoryStore),
		autoCreate: autoCreate,
	}
}

// Locate derives a stable reference from the URL and file name.
func (b *MemoryBackend) Locate(ctx context.Context, siteURL, fileName string) (WorkbookRef, error) {
	if strings.TrimSpace(siteURL) == "" {
		return WorkbookRef{}, apperrors.NewValidationError("url", nil, "required")
	}
	if strings.TrimSpace(fileName) == "" {
		return WorkbookRef{}, apperrors.NewValidationError("file_name", nil, "required")
	}
	return WorkbookRef{DriveID: "memory", ItemID: strings.TrimSpace(siteURL) + "/" + strings.TrimSpace(fileName)}, nil
}

// Workbook implements Backend.
func (b *MemoryBackend) Workbook(ref WorkbookRef) Store {
	return b.Book(ref)
}

// Book returns the concrete in-memory workbook for ref, creating it if needed.
func (b *MemoryBackend) Book(ref WorkbookRef) *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	book, ok := b.books[ref]
	if !ok {
		book = NewMemoryStore(b.autoCreate)
		b.books[ref] = book
	}
	return book
}
