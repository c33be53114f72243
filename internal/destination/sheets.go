package destination

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/reconcile"
	"github.com/sells-group/talent-sync/pkg/sheets"
)

// Sheets appends rows to one worksheet of a spreadsheet.
type Sheets struct {
	client        sheets.Client
	spreadsheetID string
	worksheet     string
	file          *LayoutFile

	mu     sync.Mutex
	layout *Layout
}

var _ reconcile.Destination = (*Sheets)(nil)

// NewSheets creates a worksheet destination. file may be nil.
func NewSheets(client sheets.Client, spreadsheetID, worksheet string, file *LayoutFile) *Sheets {
	return &Sheets{
		client:        client,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		file:          file,
	}
}

// sheetRange quotes the worksheet name for A1 notation.
func (s *Sheets) sheetRange(suffix string) string {
	if s.worksheet == "" {
		return suffix
	}
	name := "'" + strings.ReplaceAll(s.worksheet, "'", "''") + "'"
	if suffix == "" {
		return name
	}
	return name + "!" + suffix
}

// ReadExisting reads the whole worksheet and resolves the column layout from
// its header row.
func (s *Sheets) ReadExisting(ctx context.Context) ([]model.DestinationRow, error) {
	values, err := s.client.ReadValues(ctx, s.spreadsheetID, s.sheetRange(""))
	if err != nil {
		return nil, eris.Wrap(err, "destination: read sheet")
	}

	layout, err := s.resolve(values)
	if err != nil {
		return nil, err
	}

	var rows []model.DestinationRow
	for i := layout.HeaderRows; i < len(values); i++ {
		if r, ok := layout.Decode(values[i], i+1); ok {
			rows = append(rows, r)
		}
	}
	zap.L().Debug("sheet read",
		zap.String("worksheet", s.worksheet),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (s *Sheets) resolve(values [][]string) (Layout, error) {
	var header []string
	if len(values) > 0 {
		header = values[0]
	}
	l, err := ResolveLayout(s.file, header)
	if err != nil {
		return Layout{}, err
	}
	s.mu.Lock()
	s.layout = &l
	s.mu.Unlock()
	return l, nil
}

func (s *Sheets) currentLayout(ctx context.Context) (Layout, error) {
	s.mu.Lock()
	l := s.layout
	s.mu.Unlock()
	if l != nil {
		return *l, nil
	}
	values, err := s.client.ReadValues(ctx, s.spreadsheetID, s.sheetRange("1:1"))
	if err != nil {
		return Layout{}, eris.Wrap(err, "destination: read header")
	}
	return s.resolve(values)
}

// Append adds rows below the last row of the sheet. The API call is
// all-or-nothing.
func (s *Sheets) Append(ctx context.Context, rows []model.DestinationRow) (reconcile.AppendResult, error) {
	if len(rows) == 0 {
		return reconcile.AppendResult{}, nil
	}
	layout, err := s.currentLayout(ctx)
	if err != nil {
		return reconcile.AppendResult{}, err
	}

	values := make([][]string, len(rows))
	for i, r := range rows {
		values[i] = layout.Encode(r)
	}

	resp, err := s.client.AppendValues(ctx, s.spreadsheetID, s.sheetRange("A1"), values)
	if err != nil {
		return reconcile.AppendResult{}, eris.Wrap(err, "destination: append rows")
	}

	res := reconcile.AppendResult{Written: make([]string, 0, len(rows))}
	for _, r := range rows {
		res.Written = append(res.Written, r.CandidateID)
	}
	zap.L().Info("rows appended",
		zap.String("destination", "sheets"),
		zap.String("range", resp.UpdatedRange),
		zap.Int64("rows", resp.UpdatedRows),
	)
	return res, nil
}
