package excel

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"nursery-locator/internal/calculator"
	"nursery-locator/internal/models"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers of the nursery workbook.
var NurseryColumns = []string{"Name", "Latitude", "Longitude", "Capacity", "PlantsAvailable", "Contact"}

// Column headers of the points sheet used by batch jobs.
var PointColumns = []string{"ID", "Name", "Latitude", "Longitude"}

const (
	NurserySheet = "Nurseries"
	PointSheet   = "Points"
)

func parseCoord(val string) (float64, error) {
	// Decimal commas show up in locally exported sheets.
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(val, 64)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	return strings.ReplaceAll(h, "_", "")
}

// headerIndex maps normalized header names to their column positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, dup := idx[n]; !dup && n != "" {
			idx[n] = i
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[normalizeHeader(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

// HasSheet reports whether the workbook contains sheetName.
func HasSheet(f *excelize.File, sheetName string) bool {
	for _, s := range f.GetSheetList() {
		if s == sheetName {
			return true
		}
	}
	return false
}

func resolveSheet(f *excelize.File, sheetName string) (string, error) {
	if sheetName != "" {
		return sheetName, nil
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	return sheets[0], nil
}

func readCoordinate(row []string, idx map[string]int) (models.Coordinate, error) {
	lat, err := parseCoord(cell(row, idx, "Latitude"))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseCoord(cell(row, idx, "Longitude"))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	c := models.Coordinate{Lat: lat, Lon: lon}
	if err := calculator.ValidateCoordinate(c); err != nil {
		return models.Coordinate{}, err
	}
	return c, nil
}

// ReadNurseries reads the nursery table from sheetName, or from the first
// sheet when sheetName is empty. Rows with unusable coordinates are skipped.
func ReadNurseries(f *excelize.File, sheetName string) ([]models.Nursery, error) {
	sheetName, err := resolveSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	idx := headerIndex(rows[0])
	for _, col := range NurseryColumns {
		if _, ok := idx[normalizeHeader(col)]; !ok {
			return nil, fmt.Errorf("sheet %q must include: %s", sheetName, strings.Join(NurseryColumns, ", "))
		}
	}
	_, hasID := idx["id"]

	var nurseries []models.Nursery
	for i, row := range rows[1:] {
		rowNum := i + 2
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		loc, err := readCoordinate(row, idx)
		if err != nil {
			slog.Warn("skipping nursery row", "sheet", sheetName, "row", rowNum, "err", err)
			continue
		}

		id := strconv.Itoa(i)
		if hasID {
			if v := cell(row, idx, "ID"); v != "" {
				id = v
			}
		}

		nurseries = append(nurseries, models.Nursery{
			ID:              id,
			Name:            cell(row, idx, "Name"),
			Loc:             loc,
			Capacity:        cell(row, idx, "Capacity"),
			PlantsAvailable: cell(row, idx, "PlantsAvailable"),
			Contact:         cell(row, idx, "Contact"),
			RowIndex:        rowNum,
		})
	}
	return nurseries, nil
}

// ReadPoints reads batch query points. Latitude and Longitude are required,
// ID and Name are optional.
func ReadPoints(f *excelize.File, sheetName string) ([]models.QueryPoint, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	idx := headerIndex(rows[0])
	for _, col := range []string{"Latitude", "Longitude"} {
		if _, ok := idx[normalizeHeader(col)]; !ok {
			return nil, fmt.Errorf("sheet %q has no %s column", sheetName, col)
		}
	}

	var points []models.QueryPoint
	for i, row := range rows[1:] {
		rowNum := i + 2
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		loc, err := readCoordinate(row, idx)
		if err != nil {
			slog.Warn("skipping point row", "sheet", sheetName, "row", rowNum, "err", err)
			continue
		}
		id := cell(row, idx, "ID")
		if id == "" {
			id = strconv.Itoa(rowNum)
		}
		points = append(points, models.QueryPoint{
			ID:       id,
			Name:     cell(row, idx, "Name"),
			Loc:      loc,
			RowIndex: rowNum,
		})
	}
	return points, nil
}

// writeSheet streams header and rows into a fresh workbook whose only sheet
// is sheetName.
func writeSheet(sheetName string, header []interface{}, rows func(yield func([]interface{}) error) error) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillSheet(f, sheetName, header, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fillSheet(f *excelize.File, sheetName string, header []interface{}, rows func(yield func([]interface{}) error) error) error {
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	rowNum := 1
	err = rows(func(values []interface{}) error {
		rowNum++
		cellName, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return sw.SetRow(cellName, values)
	})
	if err != nil {
		return err
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	f.SetActiveSheet(index)
	// Delete default sheet if exists
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteAssignments saves batch results to path.
func WriteAssignments(path string, data []models.Assignment, sheetName string) error {
	headers := []interface{}{
		"Point ID", "Point Name", "Point Lat", "Point Lon",
		"Nursery ID", "Nursery Name", "Nursery Lat", "Nursery Lon",
		"Distance (m)", "Distance (km)",
		"Capacity", "PlantsAvailable", "Contact",
	}
	f, err := writeSheet(sheetName, headers, func(yield func([]interface{}) error) error {
		for _, r := range data {
			row := []interface{}{
				r.Point.ID, r.Point.Name, r.Point.Loc.Lat, r.Point.Loc.Lon,
				r.Nursery.ID, r.Nursery.Name, r.Nursery.Loc.Lat, r.Nursery.Loc.Lon,
				int(math.Round(r.Meters)), round2(r.Meters / 1000),
				r.Nursery.Capacity, r.Nursery.PlantsAvailable, r.Nursery.Contact,
			}
			if err := yield(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteDistances writes every nursery with its distance from ref to w.
func WriteDistances(w io.Writer, ref models.Coordinate, results []models.DistanceResult, sheetName string) error {
	headers := []interface{}{
		"ID", "Name", "Latitude", "Longitude", "Capacity", "PlantsAvailable", "Contact",
		"Reference Lat", "Reference Lon", "Distance",
		"Unit",
	}
	f, err := writeSheet(sheetName, headers, func(yield func([]interface{}) error) error {
		for _, r := range results {
			n := r.Nursery
			row := []interface{}{
				n.ID, n.Name, n.Loc.Lat, n.Loc.Lon, n.Capacity, n.PlantsAvailable, n.Contact,
				ref.Lat, ref.Lon, round2(r.Distance),
				string(r.Unit),
			}
			if err := yield(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// WriteTemplate writes an empty input workbook with the Nurseries and Points
// headers.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(NurserySheet)
	if err != nil {
		return err
	}
	if _, err := f.NewSheet(PointSheet); err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := append([]string{"ID"}, NurseryColumns...)
	if err := f.SetSheetRow(NurserySheet, "A1", &header); err != nil {
		return err
	}
	pointHeader := append([]string{}, PointColumns...)
	if err := f.SetSheetRow(PointSheet, "A1", &pointHeader); err != nil {
		return err
	}
	return f.Write(w)
}
