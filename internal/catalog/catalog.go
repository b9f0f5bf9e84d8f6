// Package catalog loads the nursery table from whichever file format it was
// exported in.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"nursery-locator/internal/dbf"
	"nursery-locator/internal/excel"
	"nursery-locator/internal/models"
)

// Load reads nurseries from path. sheet selects the worksheet of a workbook
// and is ignored for other formats; empty means the first sheet.
func Load(path, sheet string) ([]models.Nursery, error) {
	var (
		nurseries []models.Nursery
		err       error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		nurseries, err = loadWorkbook(path, sheet)
	case ".dbf":
		nurseries, err = dbf.ReadNurseries(path)
	default:
		return nil, fmt.Errorf("unsupported nursery file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if len(nurseries) == 0 {
		return nil, fmt.Errorf("no valid nursery rows in %s", path)
	}
	if dup := firstDuplicateID(nurseries); dup != "" {
		return nil, fmt.Errorf("duplicate nursery id %q in %s", dup, path)
	}
	return nurseries, nil
}

func loadWorkbook(path, sheet string) ([]models.Nursery, error) {
	f, err := excel.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return excel.ReadNurseries(f, sheet)
}

func firstDuplicateID(nurseries []models.Nursery) string {
	seen := make(map[string]struct{}, len(nurseries))
	for _, n := range nurseries {
		if _, ok := seen[n.ID]; ok {
			return n.ID
		}
		seen[n.ID] = struct{}{}
	}
	return ""
}
