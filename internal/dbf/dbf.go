// Package dbf reads nursery tables from dBase files, the attribute tables
// that shapefile exports carry.
package dbf

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Valentin-Kaiser/go-dbase/dbase"

	"nursery-locator/internal/calculator"
	"nursery-locator/internal/models"
)

// dBase field names are limited to ten characters, so the long headers of
// the workbook format get shortened aliases.
var fieldAliases = map[string][]string{
	"id":       {"ID", "NURSERY_ID", "NID"},
	"name":     {"NAME", "NURSERY"},
	"lat":      {"LATITUDE", "LAT", "Y"},
	"lon":      {"LONGITUDE", "LON", "LNG", "X"},
	"capacity": {"CAPACITY", "CAP"},
	"plants":   {"PLANTSAVAI", "PLANTS", "PLANTS_AVL"},
	"contact":  {"CONTACT", "PHONE"},
}

// ReadNurseries reads every live record of the table at path. Deleted
// records and records with unusable coordinates are skipped.
func ReadNurseries(path string) ([]models.Nursery, error) {
	table, err := dbase.OpenTable(&dbase.Config{
		Filename:   path,
		TrimSpaces: true,
		ReadOnly:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open dbf %s: %w", path, err)
	}
	defer table.Close()

	var nurseries []models.Nursery
	for i := 0; !table.EOF(); i++ {
		row, err := table.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read dbf record %d: %w", i, err)
		}
		if row.Deleted {
			continue
		}

		rec, err := row.ToMap()
		if err != nil {
			return nil, fmt.Errorf("failed to decode dbf record %d: %w", i, err)
		}

		n, err := nurseryFromRecord(i, rec)
		if err != nil {
			slog.Warn("skipping dbf record", "file", path, "record", i, "err", err)
			continue
		}
		nurseries = append(nurseries, n)
	}
	return nurseries, nil
}

func nurseryFromRecord(i int, rec map[string]interface{}) (models.Nursery, error) {
	upper := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		upper[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	lookup := func(key string) (interface{}, bool) {
		for _, alias := range fieldAliases[key] {
			if v, ok := upper[alias]; ok {
				return v, true
			}
		}
		return nil, false
	}
	str := func(key string) string {
		v, _ := lookup(key)
		return toString(v)
	}

	latV, ok := lookup("lat")
	if !ok {
		return models.Nursery{}, fmt.Errorf("no latitude field")
	}
	lonV, ok := lookup("lon")
	if !ok {
		return models.Nursery{}, fmt.Errorf("no longitude field")
	}
	lat, err := toFloat(latV)
	if err != nil {
		return models.Nursery{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := toFloat(lonV)
	if err != nil {
		return models.Nursery{}, fmt.Errorf("longitude: %w", err)
	}
	loc := models.Coordinate{Lat: lat, Lon: lon}
	if err := calculator.ValidateCoordinate(loc); err != nil {
		return models.Nursery{}, err
	}

	id := str("id")
	if id == "" {
		id = strconv.Itoa(i)
	}
	return models.Nursery{
		ID:              id,
		Name:            str("name"),
		Loc:             loc,
		Capacity:        str("capacity"),
		PlantsAvailable: str("plants"),
		Contact:         str("contact"),
		RowIndex:        i + 1,
	}, nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case string, []byte:
		s := strings.TrimSpace(strings.ReplaceAll(toString(t), ",", "."))
		if s == "" {
			return 0, fmt.Errorf("empty")
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}
