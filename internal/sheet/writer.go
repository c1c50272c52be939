package sheet

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

var (
	// ErrStructureMissing means the workbook lacks the template structure the
	// writer relies on. It is never created on the fly.
	ErrStructureMissing = errors.New("store structure missing")
	ErrSheetNotFound    = fmt.Errorf("%w: sheet not found", ErrStructureMissing)
	ErrNoHeader         = fmt.Errorf("%w: header row empty", ErrStructureMissing)
)

// Writer overwrites one sheet of an xlsx workbook with projected events.
type Writer struct {
	Projector Projector
	log       *slog.Logger
}

func NewWriter(p Projector, log *slog.Logger) *Writer {
	return &Writer{Projector: p, log: log}
}

// Sync replaces every data row of sheet with one row per event, keeping the
// header row and every other sheet. The workbook is written to a temporary
// file and renamed into place. It returns the number of rows written.
func (w *Writer) Sync(path, sheet string, events []model.CanonicalEvent) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open store %s: %w", ErrStructureMissing, path, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, sheet, path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 || blank(rows[0]) {
		return 0, fmt.Errorf("%w: %q in %s", ErrNoHeader, sheet, path)
	}
	headers := rows[0]
	roles := Roles(headers)

	// drop the previous contents bottom-up so nothing shifts under us
	for r := len(rows); r >= 2; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return 0, fmt.Errorf("clear row %d: %w", r, err)
		}
	}

	if err := setRow(f, sheet, 1, headers); err != nil {
		return 0, err
	}
	for i, e := range events {
		if err := setRow(f, sheet, i+2, w.Projector.row(roles, e)); err != nil {
			return 0, err
		}
	}

	if err := save(f, path); err != nil {
		return 0, err
	}
	w.log.Info("store synced", "path", path, "sheet", sheet, "rows", len(events), "columns", len(headers))
	return len(events), nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

// save writes next to path and renames, so readers never observe a
// half-written workbook.
func save(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if fi, err := os.Stat(path); err == nil {
		_ = tmp.Chmod(fi.Mode().Perm())
	}
	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
