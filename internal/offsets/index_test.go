package offsets

import (
	"testing"
	"time"

	"github.com/shaiso/Megaphone/internal/domain"
)

var julyAsOf = time.Date(2017, 7, 20, 12, 0, 0, 0, time.UTC)

// --- Compute Tests ---

func TestCompute_KnownOffsets(t *testing.T) {
	idx := Compute(julyAsOf)

	cases := []struct {
		zone string
		want domain.UTCOffset
	}{
		{"Asia/Karachi", -300},     // UTC+5, без DST
		{"Asia/Kolkata", -330},     // UTC+5:30
		{"Europe/Moscow", -180},    // UTC+3
		{"Europe/Berlin", -120},    // CEST, UTC+2
		{"America/St_Johns", 150},  // NDT, UTC-2:30
		{"America/New_York", 240},  // EDT, UTC-4
		{"UTC", 0},
	}

	for _, tc := range cases {
		got, ok := idx.ZoneOffset(tc.zone)
		if !ok {
			t.Errorf("zone %s missing from index", tc.zone)
			continue
		}
		if got != tc.want {
			t.Errorf("offset of %s = %d, want %d", tc.zone, got, tc.want)
		}
	}
}

func TestCompute_DSTShiftsOffset(t *testing.T) {
	january := Compute(time.Date(2017, 1, 20, 12, 0, 0, 0, time.UTC))

	// Зимой Берлин — CET, UTC+1.
	got, ok := january.ZoneOffset("Europe/Berlin")
	if !ok {
		t.Fatal("Europe/Berlin missing from index")
	}
	if got != -60 {
		t.Errorf("winter offset of Europe/Berlin = %d, want -60", got)
	}
}

func TestCompute_BidirectionalConsistency(t *testing.T) {
	idx := Compute(julyAsOf)

	for _, off := range idx.Offsets() {
		zones := idx.Zones(off)
		if len(zones) == 0 {
			t.Errorf("offset %d has no zones", off)
			continue
		}
		for _, zone := range zones {
			back, ok := idx.ZoneOffset(zone)
			if !ok || back != off {
				t.Errorf("zone %s maps to %d, listed under %d", zone, back, off)
			}
		}
	}
}

func TestCompute_RepresentativeIsStable(t *testing.T) {
	a := Compute(julyAsOf)
	b := Compute(julyAsOf)

	for _, off := range a.Offsets() {
		ra, _ := a.Representative(off)
		rb, _ := b.Representative(off)
		if ra != rb {
			t.Errorf("representative of %d differs across computations: %s vs %s", off, ra, rb)
		}
	}
}

func TestCompute_RepresentativeIsFirstSorted(t *testing.T) {
	idx := Compute(julyAsOf)

	for _, off := range idx.Offsets() {
		zones := idx.Zones(off)
		rep, ok := idx.Representative(off)
		if !ok {
			t.Fatalf("offset %d has no representative", off)
		}
		if rep != zones[0] {
			t.Errorf("representative of %d = %s, want first zone %s", off, rep, zones[0])
		}
		for i := 1; i < len(zones); i++ {
			if zones[i] < zones[i-1] {
				t.Errorf("zones of %d are not sorted: %s before %s", off, zones[i-1], zones[i])
			}
		}
	}
}

func TestCompute_UnknownOffset(t *testing.T) {
	idx := Compute(julyAsOf)

	// Минутного offset 1 не существует ни у одной зоны.
	if _, ok := idx.Representative(1); ok {
		t.Error("offset 1 must have no representative")
	}
	if zones := idx.Zones(1); len(zones) != 0 {
		t.Errorf("offset 1 must have no zones, got %v", zones)
	}
}

func TestCompute_Size(t *testing.T) {
	idx := Compute(julyAsOf)

	// Почти все зоны из встроенного списка должны загрузиться.
	if idx.Size() < 100 {
		t.Errorf("index has only %d zones", idx.Size())
	}
	if !idx.ComputedAt().Equal(julyAsOf) {
		t.Errorf("ComputedAt() = %v, want %v", idx.ComputedAt(), julyAsOf)
	}
}

// --- Keeper Tests ---

func TestKeeper_CurrentAndRefresh(t *testing.T) {
	k := NewKeeper(julyAsOf, nil)

	first := k.Current()
	if first == nil {
		t.Fatal("keeper must hold an index after construction")
	}
	if !first.ComputedAt().Equal(julyAsOf) {
		t.Errorf("initial snapshot computed at %v, want %v", first.ComputedAt(), julyAsOf)
	}

	later := julyAsOf.Add(6 * 30 * 24 * time.Hour)
	k.Refresh(later)

	second := k.Current()
	if second == first {
		t.Error("refresh must replace the snapshot")
	}
	if !second.ComputedAt().Equal(later) {
		t.Errorf("refreshed snapshot computed at %v, want %v", second.ComputedAt(), later)
	}
}
