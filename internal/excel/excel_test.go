package excel

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nursery-locator/internal/models"

	"github.com/xuri/excelize/v2"
)

// saveWorkbook writes rows to Sheet1 of a new workbook and reopens it.
func saveWorkbook(t *testing.T, rows [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, r := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	out, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { _ = out.Close() })
	return out
}

func TestReadNurseries(t *testing.T) {
	f := saveWorkbook(t, [][]interface{}{
		{"Name", "Latitude", "Longitude", "Capacity", "Plants Available", "Contact"},
		{"Khariar Central", 20.57, 84.14, 5000, 1200, "9437000001"},
		{"Sinapali", "20,90", "84,20", 3000, 800, "9437000002"},
		{"Broken", "north", 84.1, 100, 10, ""},
		{"Out of range", 95.0, 84.1, 100, 10, ""},
		{"Komna", 20.48, 82.95, 2500, 0, "9437000003"},
	})

	got, err := ReadNurseries(f, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 nurseries, got %d: %+v", len(got), got)
	}

	first := got[0]
	if first.ID != "0" || first.Name != "Khariar Central" || first.RowIndex != 2 {
		t.Errorf("unexpected first nursery: %+v", first)
	}
	if first.Capacity != "5000" || first.PlantsAvailable != "1200" || first.Contact != "9437000001" {
		t.Errorf("unexpected payload: %+v", first)
	}

	if got[1].Loc != (models.Coordinate{Lat: 20.9, Lon: 84.2}) {
		t.Errorf("decimal commas: expected 20.9/84.2, got %+v", got[1].Loc)
	}

	// IDs follow the data row position, skipped rows included.
	if got[2].ID != "4" || got[2].Name != "Komna" {
		t.Errorf("unexpected last nursery: %+v", got[2])
	}
}

func TestReadNurseries_IDColumn(t *testing.T) {
	f := saveWorkbook(t, [][]interface{}{
		{"ID", "Name", "Latitude", "Longitude", "Capacity", "PlantsAvailable", "Contact"},
		{"KHR-7", "Khariar Central", 20.57, 84.14, 5000, 1200, "x"},
	})

	got, err := ReadNurseries(f, "Sheet1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "KHR-7" {
		t.Fatalf("expected ID KHR-7, got %+v", got)
	}
}

func TestReadNurseries_MissingColumns(t *testing.T) {
	f := saveWorkbook(t, [][]interface{}{
		{"Name", "Latitude", "Longitude"},
		{"Khariar Central", 20.57, 84.14},
	})

	_, err := ReadNurseries(f, "")
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "PlantsAvailable") {
		t.Errorf("expected error to list required columns, got %v", err)
	}
}

func TestReadPoints(t *testing.T) {
	f := saveWorkbook(t, [][]interface{}{
		{"Name", "Latitude", "Longitude"},
		{"Village A", 20.6, 84.1},
		{"Village B", "", 84.1},
		{"Village C", 20.7, 84.3},
	})

	got, err := ReadPoints(f, "Sheet1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "4" {
		t.Errorf("expected row-number IDs 2 and 4, got %s and %s", got[0].ID, got[1].ID)
	}
}

func TestWriteAssignments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	data := []models.Assignment{
		{
			Point:   models.QueryPoint{ID: "p1", Name: "Village A", Loc: models.Coordinate{Lat: 20.56, Lon: 84.14}},
			Nursery: models.Nursery{ID: "0", Name: "Khariar Central", Loc: models.Coordinate{Lat: 20.57, Lon: 84.14}, Contact: "x"},
			Meters:  1107.114,
		},
	}

	if err := WriteAssignments(path, data, "Results"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if HasSheet(f, "Sheet1") {
		t.Error("default sheet should be removed")
	}
	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 row, got %d", len(rows))
	}
	if rows[1][0] != "p1" || rows[1][5] != "Khariar Central" || rows[1][8] != "1107" || rows[1][9] != "1.11" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}

func TestWriteDistances(t *testing.T) {
	var buf bytes.Buffer
	results := []models.DistanceResult{
		{Nursery: models.Nursery{ID: "0", Name: "A"}, Distance: 1.10711, Unit: models.Kilometers},
		{Nursery: models.Nursery{ID: "1", Name: "B"}, Distance: 38.157, Unit: models.Kilometers},
	}
	if err := WriteDistances(&buf, models.Coordinate{Lat: 20.56, Lon: 84.14}, results, "Distances"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Distances")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || rows[2][1] != "B" || rows[2][9] != "38.16" || rows[2][10] != "km" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if !HasSheet(f, NurserySheet) || !HasSheet(f, PointSheet) {
		t.Fatalf("expected %s and %s sheets, got %v", NurserySheet, PointSheet, f.GetSheetList())
	}

	// An empty template is a valid (if empty) nursery table.
	got, err := ReadNurseries(f, NurserySheet)
	if err != nil {
		t.Fatalf("template headers rejected: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
