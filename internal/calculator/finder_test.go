package calculator

import (
	"errors"
	"math"
	"testing"

	"nursery-locator/internal/models"
)

func nursery(id string, lat, lon float64) models.Nursery {
	return models.Nursery{ID: id, Name: "Nursery " + id, Loc: models.Coordinate{Lat: lat, Lon: lon}}
}

var samplePoints = []models.Coordinate{
	{Lat: 0, Lon: 0},
	{Lat: 20.56, Lon: 84.14},
	{Lat: 20.9, Lon: 84.2},
	{Lat: -33.8688, Lon: 151.2093},
	{Lat: 51.5074, Lon: -0.1278},
	{Lat: 89.9, Lon: 10},
	{Lat: -89.5, Lon: -170},
	{Lat: 10, Lon: 179.9},
	{Lat: 10, Lon: -179.9},
}

// TestDistance_Symmetric tests distance(a, b) == distance(b, a)
func TestDistance_Symmetric(t *testing.T) {
	for _, a := range samplePoints {
		for _, b := range samplePoints {
			ab := Distance(a, b)
			ba := Distance(b, a)
			if math.Abs(ab-ba) > 1e-6*math.Max(ab, 1) {
				t.Errorf("distance(%v, %v) = %.6f, reverse = %.6f", a, b, ab, ba)
			}
		}
	}
}

// TestDistance_SamePointIsZero tests distance(p, p) == 0
func TestDistance_SamePointIsZero(t *testing.T) {
	for _, p := range samplePoints {
		if d := Distance(p, p); d != 0 {
			t.Errorf("distance(%v, %v) = %.10f, expected 0", p, p, d)
		}
	}
}

// TestDistance_TriangleInequality tests d(a,c) <= d(a,b) + d(b,c)
func TestDistance_TriangleInequality(t *testing.T) {
	for _, a := range samplePoints {
		for _, b := range samplePoints {
			for _, c := range samplePoints {
				ac := Distance(a, c)
				abc := Distance(a, b) + Distance(b, c)
				if ac > abc+1e-6 {
					t.Errorf("triangle inequality violated for %v, %v, %v: %.6f > %.6f", a, b, c, ac, abc)
				}
			}
		}
	}
}

// TestDistance_Ellipsoidal tests against known WGS-84 arc lengths
func TestDistance_Ellipsoidal(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Coordinate
		expected float64 // meters
		tol      float64
	}{
		// One degree of longitude on the equator is a*pi/180.
		{"equator 1 deg", models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 0, Lon: 1}, 111319.49, 0.5},
		// One degree of latitude at the equator is shorter than at the pole.
		{"meridian 0-1 deg", models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 1, Lon: 0}, 110574.39, 1},
		{"meridian 89-90 deg", models.Coordinate{Lat: 89, Lon: 0}, models.Coordinate{Lat: 90, Lon: 0}, 111693.98, 1},
		{"khariar short hop", models.Coordinate{Lat: 20.56, Lon: 84.14}, models.Coordinate{Lat: 20.57, Lon: 84.14}, 1107.1, 1},
	}

	for _, tt := range tests {
		got := Distance(tt.a, tt.b)
		if math.Abs(got-tt.expected) > tt.tol {
			t.Errorf("%s: expected %.2f m, got %.2f m", tt.name, tt.expected, got)
		}
	}
}

func TestDistanceIn(t *testing.T) {
	a := models.Coordinate{Lat: 0, Lon: 0}
	b := models.Coordinate{Lat: 0, Lon: 1}

	m := DistanceIn(a, b, models.Meters)
	km := DistanceIn(a, b, models.Kilometers)
	if math.Abs(m-km*1000) > 1e-6 {
		t.Errorf("meters %.6f and kilometers %.6f disagree", m, km)
	}
}

// TestNearest_KhariarScenario tests the nearest of two nurseries near Khariar
func TestNearest_KhariarScenario(t *testing.T) {
	ref := models.Coordinate{Lat: 20.5600, Lon: 84.1400}
	candidates := []models.Nursery{
		nursery("A", 20.5700, 84.1400),
		nursery("B", 20.9000, 84.2000),
	}

	f := NewFinder()
	got, err := f.Nearest(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Nursery.ID != "A" {
		t.Fatalf("expected nursery A, got %s", got.Nursery.ID)
	}
	if got.Unit != models.Kilometers {
		t.Errorf("expected km, got %s", got.Unit)
	}
	if math.Abs(got.Distance-1.11) > 0.0111 {
		t.Errorf("expected ~1.11 km, got %.4f km", got.Distance)
	}

	all, err := f.AnnotateDistances(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if all[1].Distance < 37.5 || all[1].Distance > 38.5 {
		t.Errorf("expected B at ~38 km, got %.4f km", all[1].Distance)
	}
}

// TestNearest_EquatorTie tests that the first of two equidistant candidates wins
func TestNearest_EquatorTie(t *testing.T) {
	ref := models.Coordinate{Lat: 0, Lon: 0}
	candidates := []models.Nursery{
		nursery("X", 0, 1),
		nursery("Y", 0, -1),
	}

	f := NewFinder()
	all, err := f.AnnotateDistances(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(all[0].Distance-all[1].Distance) > 1e-9 {
		t.Errorf("expected equal distances, got %.12f and %.12f", all[0].Distance, all[1].Distance)
	}
	if all[0].Distance < 111.0 || all[0].Distance > 111.5 {
		t.Errorf("expected ~111.3 km, got %.4f", all[0].Distance)
	}

	for i := 0; i < 20; i++ {
		got, err := f.Nearest(ref, candidates)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got.Nursery.ID != "X" {
			t.Fatalf("call %d: expected X, got %s", i, got.Nursery.ID)
		}
	}

	// Reversing the input reverses the winner.
	got, _ := f.Nearest(ref, []models.Nursery{candidates[1], candidates[0]})
	if got.Nursery.ID != "Y" {
		t.Errorf("reversed input: expected Y, got %s", got.Nursery.ID)
	}
}

// TestNearest_Epsilon tests that distances within epsilon count as a tie
func TestNearest_Epsilon(t *testing.T) {
	ref := models.Coordinate{Lat: 0, Lon: 0}
	// About 998.5 m and 995.2 m north of the reference.
	candidates := []models.Nursery{
		nursery("far", 0.00903, 0),
		nursery("near", 0.009, 0),
	}

	loose := NewFinder(WithUnit(models.Meters), WithEpsilon(5))
	got, err := loose.Nearest(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Nursery.ID != "far" {
		t.Errorf("epsilon 5 m: expected first candidate, got %s", got.Nursery.ID)
	}

	strict := NewFinder(WithUnit(models.Meters))
	got, err = strict.Nearest(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Nursery.ID != "near" {
		t.Errorf("default epsilon: expected near, got %s", got.Nursery.ID)
	}
}

// TestNearest_UniqueMinimum tests that the unique closest candidate is returned wherever it sits
func TestNearest_UniqueMinimum(t *testing.T) {
	ref := models.Coordinate{Lat: 20.56, Lon: 84.14}
	base := []models.Nursery{
		nursery("1", 21.0, 84.0),
		nursery("2", 20.0, 85.0),
		nursery("3", 20.7, 83.9),
		nursery("4", 19.9, 84.1),
	}
	closest := nursery("closest", 20.561, 84.141)

	f := NewFinder()
	for pos := 0; pos <= len(base); pos++ {
		candidates := append([]models.Nursery{}, base[:pos]...)
		candidates = append(candidates, closest)
		candidates = append(candidates, base[pos:]...)

		got, err := f.Nearest(ref, candidates)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got.Nursery.ID != "closest" {
			t.Errorf("position %d: expected closest, got %s", pos, got.Nursery.ID)
		}
	}
}

func TestAnnotateDistances_PreservesOrder(t *testing.T) {
	ref := models.Coordinate{Lat: 20.56, Lon: 84.14}
	candidates := []models.Nursery{
		nursery("c", 22.0, 85.0),
		nursery("a", 20.6, 84.1),
		nursery("b", 21.0, 84.5),
	}

	got, err := NewFinder(WithUnit(models.Meters)).AnnotateDistances(ref, candidates)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != len(candidates) {
		t.Fatalf("expected %d results, got %d", len(candidates), len(got))
	}
	for i := range candidates {
		if got[i].Nursery.ID != candidates[i].ID {
			t.Errorf("result %d: expected %s, got %s", i, candidates[i].ID, got[i].Nursery.ID)
		}
		want := Distance(ref, candidates[i].Loc)
		if math.Abs(got[i].Distance-want) > 1e-9 || got[i].Unit != models.Meters {
			t.Errorf("result %d: expected %.3f m, got %.3f %s", i, want, got[i].Distance, got[i].Unit)
		}
	}
}

// TestInvalidInput tests rejection of empty and malformed input
func TestInvalidInput(t *testing.T) {
	ok := models.Coordinate{Lat: 20.56, Lon: 84.14}
	good := []models.Nursery{nursery("A", 20.57, 84.14)}

	tests := []struct {
		name       string
		ref        models.Coordinate
		candidates []models.Nursery
		index      int
	}{
		{"empty", ok, nil, -1},
		{"empty slice", ok, []models.Nursery{}, -1},
		{"ref lat too large", models.Coordinate{Lat: 90.1, Lon: 0}, good, -1},
		{"ref lon NaN", models.Coordinate{Lat: 0, Lon: math.NaN()}, good, -1},
		{"candidate lat NaN", ok, append(good, nursery("B", math.NaN(), 0)), 1},
		{"candidate lon +Inf", ok, append(good, nursery("B", 0, math.Inf(1))), 1},
		{"candidate lon too small", ok, []models.Nursery{nursery("B", 0, -180.5)}, 0},
		{"candidate lat too small", ok, []models.Nursery{nursery("B", -91, 0)}, 0},
	}

	f := NewFinder()
	for _, tt := range tests {
		res, err := f.AnnotateDistances(tt.ref, tt.candidates)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: AnnotateDistances expected ErrInvalidInput, got %v", tt.name, err)
		}
		if res != nil {
			t.Errorf("%s: expected no partial results, got %d", tt.name, len(res))
		}

		_, err = f.Nearest(tt.ref, tt.candidates)
		var inv *InvalidInputError
		if !errors.As(err, &inv) {
			t.Fatalf("%s: Nearest expected *InvalidInputError, got %v", tt.name, err)
		}
		if inv.Index != tt.index {
			t.Errorf("%s: expected index %d, got %d", tt.name, tt.index, inv.Index)
		}
	}
}

func TestValidateCoordinate_Bounds(t *testing.T) {
	for _, c := range []models.Coordinate{
		{Lat: 90, Lon: 180},
		{Lat: -90, Lon: -180},
		{Lat: 0, Lon: 0},
	} {
		if err := ValidateCoordinate(c); err != nil {
			t.Errorf("%v: unexpected error %v", c, err)
		}
	}
}

func TestWithinRadius(t *testing.T) {
	ref := models.Coordinate{Lat: 20.56, Lon: 84.14}
	candidates := []models.Nursery{
		nursery("B", 20.9, 84.2),
		nursery("A", 20.57, 84.14),
		nursery("C", 20.56, 84.15),
	}

	got, err := NewFinder().WithinRadius(ref, candidates, 5000)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Nursery.ID != "A" || got[1].Nursery.ID != "C" {
		t.Fatalf("expected [A C], got %+v", got)
	}

	if _, err := NewFinder().WithinRadius(ref, candidates, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative radius: expected ErrInvalidInput, got %v", err)
	}
}

func TestNewFinder_Defaults(t *testing.T) {
	f := NewFinder(WithUnit("furlong"), WithEpsilon(math.NaN()))
	if f.Unit() != models.Kilometers {
		t.Errorf("expected km fallback, got %s", f.Unit())
	}
	if f.epsilon != DefaultEpsilon {
		t.Errorf("expected default epsilon, got %g", f.epsilon)
	}
}
