package destination

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/talent-sync/internal/fileutil"
	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/reconcile"
)

const defaultSheetName = "Candidates"

// Workbook appends rows to a sheet of a local xlsx file. A missing file or
// sheet is created with a header row on first append.
type Workbook struct {
	path  string
	sheet string
	file  *LayoutFile

	mu sync.Mutex
}

var _ reconcile.Destination = (*Workbook)(nil)

// NewWorkbook creates a workbook destination. file may be nil.
func NewWorkbook(path, sheet string, file *LayoutFile) *Workbook {
	if sheet == "" {
		sheet = defaultSheetName
	}
	return &Workbook{path: path, sheet: sheet, file: file}
}

func (w *Workbook) open() (*xlsx.File, error) {
	if _, err := os.Stat(w.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	f, err := xlsx.OpenFile(w.path)
	if err != nil {
		return nil, eris.Wrapf(err, "destination: open workbook %s", w.path)
	}
	return f, nil
}

func sheetValues(sh *xlsx.Sheet) [][]string {
	if sh == nil {
		return nil
	}
	out := make([][]string, len(sh.Rows))
	for i, row := range sh.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			if c != nil {
				cells[j] = c.String()
			}
		}
		out[i] = cells
	}
	return out
}

// ReadExisting reads every data row of the sheet.
func (w *Workbook) ReadExisting(ctx context.Context) ([]model.DestinationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil || f == nil {
		return nil, err
	}
	values := sheetValues(f.Sheet[w.sheet])

	var header []string
	if len(values) > 0 {
		header = values[0]
	}
	layout, err := ResolveLayout(w.file, header)
	if err != nil {
		return nil, err
	}

	var rows []model.DestinationRow
	for i := layout.HeaderRows; i < len(values); i++ {
		if r, ok := layout.Decode(values[i], i+1); ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Append adds rows after the sheet's last row and atomically replaces the
// file.
func (w *Workbook) Append(ctx context.Context, rows []model.DestinationRow) (reconcile.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return reconcile.AppendResult{}, err
	}
	if len(rows) == 0 {
		return reconcile.AppendResult{}, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return reconcile.AppendResult{}, err
	}
	if f == nil {
		f = xlsx.NewFile()
	}

	sh, fresh := f.Sheet[w.sheet], false
	if sh == nil {
		sh, err = f.AddSheet(w.sheet)
		if err != nil {
			return reconcile.AppendResult{}, eris.Wrapf(err, "destination: add sheet %s", w.sheet)
		}
		fresh = true
	}

	var header []string
	if values := sheetValues(sh); len(values) > 0 {
		header = values[0]
	}
	layout, err := ResolveLayout(w.file, header)
	if err != nil {
		return reconcile.AppendResult{}, err
	}
	if fresh && layout.HeaderRows > 0 {
		addRow(sh, layout.Header())
	}

	res := reconcile.AppendResult{Written: make([]string, 0, len(rows))}
	for _, r := range rows {
		addRow(sh, layout.Encode(r))
		res.Written = append(res.Written, r.CandidateID)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return reconcile.AppendResult{}, eris.Wrap(err, "destination: encode workbook")
	}
	if err := fileutil.WriteAtomic(w.path, buf.Bytes(), 0o644); err != nil {
		return reconcile.AppendResult{}, eris.Wrap(err, "destination: save workbook")
	}
	return res, nil
}

func addRow(sh *xlsx.Sheet, cells []string) {
	row := sh.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
