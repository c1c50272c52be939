package sheet

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/1alexb/gaza-datasheet-server/internal/identity"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

var templateHeader = []string{"id", "title", "desc", "date", "time", "location", "latitude", "longitude", "association0", "source0", "comments"}

func newWriter() *Writer {
	p := Projector{
		Associations: Associations{{Match: "techforpalestine", Category: "casualties"}, {Match: "reliefweb", Category: "humanitarian"}},
		Centroid:     GazaCentroid,
	}
	return NewWriter(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// newTemplate creates a workbook with the events sheet, a header row and an
// untouched associations sheet.
func newTemplate(t *testing.T, header []string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("EXPORT_EVENTS"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if header != nil {
		if err := f.SetSheetRow("EXPORT_EVENTS", "A1", &header); err != nil {
			t.Fatalf("header: %v", err)
		}
	}
	if _, err := f.NewSheet("EXPORT_ASSOCIATIONS"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	assoc := []string{"casualties", "Casualties"}
	if err := f.SetSheetRow("EXPORT_ASSOCIATIONS", "A2", &assoc); err != nil {
		t.Fatalf("assoc: %v", err)
	}
	path := filepath.Join(t.TempDir(), "gaza_timemap.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

// cell tolerates the trailing-empty trimming GetRows does.
func cell(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}

func sampleEvents() []model.CanonicalEvent {
	return []model.CanonicalEvent{
		model.NewEvent(model.Envelope{
			Date: "2024-05-03", Location: "Gaza / Palestine", Source: "ReliefWeb",
			Latitude: model.Float(31.5), Longitude: model.Float(34.466),
			Title: "Flash update", URL: "https://reliefweb.int/report/1",
		}),
		model.NewEvent(model.Envelope{
			Date: "2024-05-01", Location: "Gaza", Source: "TechForPalestine-Daily",
			Title: "Daily Casualties: 7 Killed",
		}),
		model.NewEvent(model.Envelope{Source: "ACLED", Location: "Rafah"}),
	}
}

func TestSyncWritesProjectedRows(t *testing.T) {
	path := newTemplate(t, templateHeader)
	events := sampleEvents()
	n, err := newWriter().Sync(path, "EXPORT_EVENTS", events)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	rows := readRows(t, path, "EXPORT_EVENTS")
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	for i, h := range templateHeader {
		if cell(rows, 0, i) != h {
			t.Fatalf("header changed at %d: %q", i, cell(rows, 0, i))
		}
	}

	if cell(rows, 1, 0) != identity.Assign(events[0]) {
		t.Fatalf("unexpected id %q", cell(rows, 1, 0))
	}
	if cell(rows, 1, 1) != "Flash update" {
		t.Fatalf("unexpected title %q", cell(rows, 1, 1))
	}
	if want := "Imported event dated 2024-05-03. Source: ReliefWeb\nLink: https://reliefweb.int/report/1"; cell(rows, 1, 2) != want {
		t.Fatalf("unexpected description %q", cell(rows, 1, 2))
	}
	if cell(rows, 1, 3) != "05/03/2024" || cell(rows, 1, 4) != "12:00" || cell(rows, 1, 5) != "Gaza / Palestine" {
		t.Fatalf("unexpected date/time/location %v", rows[1])
	}
	if cell(rows, 1, 6) != "31.5" || cell(rows, 1, 7) != "34.466" {
		t.Fatalf("unexpected coordinates %v", rows[1])
	}
	if cell(rows, 1, 8) != "humanitarian" || cell(rows, 1, 9) != "ReliefWeb" || cell(rows, 1, 10) != "" {
		t.Fatalf("unexpected association/source/extra %v", rows[1])
	}
	if cell(rows, 2, 8) != "casualties" {
		t.Fatalf("daily series should map to casualties, got %q", cell(rows, 2, 8))
	}

	// undated, no coordinates, unmapped source
	if cell(rows, 3, 1) != "ACLED - Rafah" || cell(rows, 3, 2) != "Imported undated event. Source: ACLED" {
		t.Fatalf("unexpected fallbacks %v", rows[3])
	}
	if cell(rows, 3, 3) != "" || cell(rows, 3, 4) != "12:00" {
		t.Fatalf("undated row must have empty date and fixed time: %v", rows[3])
	}
	if cell(rows, 3, 6) != "31.3547" || cell(rows, 3, 7) != "34.3088" || cell(rows, 3, 8) != "" {
		t.Fatalf("expected centroid fallback and no association: %v", rows[3])
	}

	assoc := readRows(t, path, "EXPORT_ASSOCIATIONS")
	if cell(assoc, 1, 0) != "casualties" {
		t.Fatalf("other sheets must be preserved, got %v", assoc)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	path := newTemplate(t, templateHeader)
	w := newWriter()
	if _, err := w.Sync(path, "EXPORT_EVENTS", sampleEvents()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first := readRows(t, path, "EXPORT_EVENTS")
	if _, err := w.Sync(path, "EXPORT_EVENTS", sampleEvents()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second := readRows(t, path, "EXPORT_EVENTS")
	if len(first) != len(second) {
		t.Fatalf("row count changed: %d vs %d", len(first), len(second))
	}
	for r := range first {
		for c := range templateHeader {
			if cell(first, r, c) != cell(second, r, c) {
				t.Fatalf("cell %d,%d changed: %q vs %q", r, c, cell(first, r, c), cell(second, r, c))
			}
		}
	}
}

func TestSyncRemovesStaleRows(t *testing.T) {
	path := newTemplate(t, templateHeader)
	w := newWriter()
	if _, err := w.Sync(path, "EXPORT_EVENTS", sampleEvents()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if _, err := w.Sync(path, "EXPORT_EVENTS", sampleEvents()[:1]); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	rows := readRows(t, path, "EXPORT_EVENTS")
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d: %v", len(rows), rows)
	}
	n, err := w.Sync(path, "EXPORT_EVENTS", nil)
	if err != nil || n != 0 {
		t.Fatalf("empty sync: %d %v", n, err)
	}
	if rows := readRows(t, path, "EXPORT_EVENTS"); len(rows) != 1 {
		t.Fatalf("expected header only, got %v", rows)
	}
}

func TestSyncStructureMissing(t *testing.T) {
	w := newWriter()
	path := newTemplate(t, templateHeader)
	if _, err := w.Sync(path, "NOPE", sampleEvents()); !errors.Is(err, ErrSheetNotFound) || !errors.Is(err, ErrStructureMissing) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}

	noHeader := newTemplate(t, nil)
	if _, err := w.Sync(noHeader, "EXPORT_EVENTS", sampleEvents()); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
	// the failed sync must not touch the workbook
	if rows := readRows(t, noHeader, "EXPORT_EVENTS"); len(rows) != 0 {
		t.Fatalf("expected untouched sheet, got %v", rows)
	}

	if _, err := w.Sync(filepath.Join(t.TempDir(), "missing.xlsx"), "EXPORT_EVENTS", nil); !errors.Is(err, ErrStructureMissing) || !strings.Contains(err.Error(), "open store") {
		t.Fatalf("expected missing workbook to be a structure error, got %v", err)
	}
}

func TestFormatDate(t *testing.T) {
	cases := map[string]string{
		"2024-05-01": "05/01/2024",
		"2024-12-31": "12/31/2024",
		"":           "",
		"2024-5-1":   "",
		"01/05/2024": "",
	}
	for in, want := range cases {
		if got := FormatDate(in); got != want {
			t.Fatalf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRowNeverWritesNull(t *testing.T) {
	p := Projector{Centroid: GazaCentroid}
	row := p.Row([]string{"lat", "lng", "source"}, model.NewEvent(model.Envelope{}))
	if row[0] != "31.3547" || row[1] != "34.3088" || row[2] != model.UnknownSource {
		t.Fatalf("unexpected row %v", row)
	}
}
