package calculator

import (
	"context"
	"fmt"
	"nursery-locator/internal/models"
	"runtime"
	"sync"
	"sync/atomic"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

// How many points a worker handles between cancellation checks and
// progress reports.
const (
	checkEvery    = 64
	progressEvery = 500
)

func validatePoints(points []models.QueryPoint) error {
	if len(points) == 0 {
		return &InvalidInputError{Index: -1, Reason: "empty point list"}
	}
	for i, p := range points {
		if err := ValidateCoordinate(p.Loc); err != nil {
			return &InvalidInputError{Index: -1, Reason: fmt.Sprintf("point %d: %v", i, err)}
		}
	}
	return nil
}

func validateBatch(points []models.QueryPoint, nurseries []models.Nursery) error {
	if err := validatePoints(points); err != nil {
		return err
	}
	if len(nurseries) == 0 {
		return &InvalidInputError{Index: -1, Reason: "empty candidate list"}
	}
	return validateCandidates(nurseries)
}

// chunks splits total items into at most NumCPU contiguous ranges.
func chunks(total int) [][2]int {
	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunkSize := (total + numCPU - 1) / numCPU

	var out [][2]int
	for i := 0; i < numCPU; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// AssignNearest finds the nearest nursery for every point. Results are in
// point order and use the same tie-break as Nearest.
func (f *Finder) AssignNearest(ctx context.Context, points []models.QueryPoint, nurseries []models.Nursery, onProgress ProgressCallback, logger LoggerCallback) ([]models.Assignment, error) {
	if err := validateBatch(points, nurseries); err != nil {
		return nil, err
	}
	logf := loggerOrNop(logger)

	total := len(points)
	results := make([]models.Assignment, total)
	parts := chunks(total)

	var wg sync.WaitGroup
	var processedCount int64

	logf(fmt.Sprintf("Starting parallel processing with %d workers, %d points, %d nurseries", len(parts), total, len(nurseries)))

	for _, part := range parts {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			for idx := s; idx < e; idx++ {
				if (idx-s)%checkEvery == 0 && ctx.Err() != nil {
					return
				}
				p := points[idx]
				nearestIdx, _ := f.nearestIndex(p.Loc, nurseries)
				nearest := nurseries[nearestIdx]
				results[idx] = models.Assignment{
					Point:   p,
					Nursery: nearest,
					Meters:  Distance(p.Loc, nearest.Loc),
				}

				count := atomic.AddInt64(&processedCount, 1)
				if count%progressEvery == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			}
		}(part[0], part[1])
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if onProgress != nil {
		onProgress(total, total, "")
	}
	logf("Calculation completed.")
	return results, nil
}

// AssignRadius pairs every point with every nursery within radiusMeters,
// ordered by point then by nursery position.
func (f *Finder) AssignRadius(ctx context.Context, points []models.QueryPoint, nurseries []models.Nursery, radiusMeters float64, onProgress ProgressCallback, logger LoggerCallback) ([]models.Assignment, error) {
	if err := validateRadius(radiusMeters); err != nil {
		return nil, err
	}
	if err := validateBatch(points, nurseries); err != nil {
		return nil, err
	}
	logf := loggerOrNop(logger)

	total := len(points)
	parts := chunks(total)
	perChunk := make([][]models.Assignment, len(parts))

	var wg sync.WaitGroup
	var processedCount int64

	logf(fmt.Sprintf("Starting radius search (%.0fm) with %d workers", radiusMeters, len(parts)))

	for i, part := range parts {
		wg.Add(1)
		go func(slot, s, e int) {
			defer wg.Done()
			var localRes []models.Assignment

			for idx := s; idx < e; idx++ {
				if (idx-s)%checkEvery == 0 && ctx.Err() != nil {
					return
				}
				src := points[idx]
				for _, n := range nurseries {
					d := Distance(src.Loc, n.Loc)
					if d <= radiusMeters {
						localRes = append(localRes, models.Assignment{
							Point:   src,
							Nursery: n,
							Meters:  d,
						})
					}
				}

				count := atomic.AddInt64(&processedCount, 1)
				if count%progressEvery == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			}
			perChunk[slot] = localRes
		}(i, part[0], part[1])
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allResults := []models.Assignment{}
	for _, c := range perChunk {
		allResults = append(allResults, c...)
	}

	if onProgress != nil {
		onProgress(total, total, "")
	}
	logf("Radius calculation completed.")
	return allResults, nil
}

func loggerOrNop(l LoggerCallback) LoggerCallback {
	if l == nil {
		return func(string) {}
	}
	return l
}
