package experiment

import (
	"fmt"
	"sort"
	"testing"

	"github.com/shaiso/Megaphone/internal/domain"
)

// --- BucketValue Tests ---

func TestBucketValue_Deterministic(t *testing.T) {
	a := BucketValue("installation-1", "salt")
	b := BucketValue("installation-1", "salt")

	if a != b {
		t.Errorf("same input produced different values: %d vs %d", a, b)
	}
}

func TestBucketValue_WithinSpace(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := BucketValue(fmt.Sprintf("installation-%d", i), "salt")
		if v < 0 || v >= DistributionMax {
			t.Fatalf("bucket value %d outside [0, %d)", v, DistributionMax)
		}
	}
}

func TestBucketValue_SaltChangesAssignment(t *testing.T) {
	differ := 0
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("installation-%d", i)
		if BucketValue(id, "campaign-a") != BucketValue(id, "campaign-b") {
			differ++
		}
	}
	if differ == 0 {
		t.Error("different salts never changed bucket values")
	}
}

// --- DistributionRange Tests ---

func TestDistributionMax(t *testing.T) {
	if DistributionMax != 268435456 {
		t.Errorf("DistributionMax = %d, want 268435456", DistributionMax)
	}
}

func TestDistributionRange_5149(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 51, Payload: `{"alert":"A"}`},
		{Percent: 49, Payload: `{"alert":"B"}`},
	}

	first, err := DistributionRange(variants, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Min != 0 || first.Max != 136902083 {
		t.Errorf("variant 0 range = [%d, %d], want [0, 136902083]", first.Min, first.Max)
	}

	second, err := DistributionRange(variants, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Min != 136902083 || second.Max != DistributionMax {
		t.Errorf("variant 1 range = [%d, %d], want [136902083, %d]", second.Min, second.Max, DistributionMax)
	}
}

func TestDistributionRange_FractionsScaled(t *testing.T) {
	// Доли 0.51/0.49 дают те же диапазоны, что проценты 51/49.
	variants := []domain.Variant{
		{Percent: 0.51, Payload: `{"alert":"A"}`},
		{Percent: 0.49, Payload: `{"alert":"B"}`},
	}

	r, err := DistributionRange(variants, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Min != 136902083 || r.Max != DistributionMax {
		t.Errorf("variant 1 range = [%d, %d], want [136902083, %d]", r.Min, r.Max, DistributionMax)
	}
}

func TestDistributionRange_CoversSpace(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 40, Payload: `{"alert":"A"}`},
		{Percent: 30, Payload: `{"alert":"B"}`},
		{Percent: 30, Payload: `{"alert":"C"}`},
	}

	ranges := make([]Range, len(variants))
	for i := range variants {
		r, err := DistributionRange(variants, i)
		if err != nil {
			t.Fatalf("variant %d: unexpected error: %v", i, err)
		}
		ranges[i] = r
	}

	sort.Slice(ranges, func(a, b int) bool { return ranges[a].Min < ranges[b].Min })

	if ranges[0].Min != 0 {
		t.Errorf("first range starts at %d, want 0", ranges[0].Min)
	}
	if ranges[len(ranges)-1].Max != DistributionMax {
		t.Errorf("last range ends at %d, want %d", ranges[len(ranges)-1].Max, DistributionMax)
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Min != ranges[i-1].Max {
			t.Errorf("gap between ranges: [%d, %d] then [%d, %d]",
				ranges[i-1].Min, ranges[i-1].Max, ranges[i].Min, ranges[i].Max)
		}
	}
}

func TestDistributionRange_OrderIndependent(t *testing.T) {
	// Диапазон варианта определяется его (percent, payload), а не позицией
	// в слайсе вызывающей стороны.
	a := []domain.Variant{
		{Percent: 49, Payload: `{"alert":"B"}`},
		{Percent: 51, Payload: `{"alert":"A"}`},
	}
	b := []domain.Variant{
		{Percent: 51, Payload: `{"alert":"A"}`},
		{Percent: 49, Payload: `{"alert":"B"}`},
	}

	ra, err := DistributionRange(a, 1) // 51% в a
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rb, err := DistributionRange(b, 0) // 51% в b
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ra != rb {
		t.Errorf("same variant got different ranges: [%d, %d] vs [%d, %d]",
			ra.Min, ra.Max, rb.Min, rb.Max)
	}
}

func TestDistributionRange_InvalidSum(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 50, Payload: "a"},
		{Percent: 30, Payload: "b"},
	}

	if _, err := DistributionRange(variants, 0); err == nil {
		t.Error("expected error for percents not adding up to 100")
	}
}

func TestDistributionRange_NegativePercent(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 110, Payload: "a"},
		{Percent: -10, Payload: "b"},
	}

	if _, err := DistributionRange(variants, 0); err == nil {
		t.Error("expected error for negative percent")
	}
}

func TestDistributionRange_IndexOutOfRange(t *testing.T) {
	variants := []domain.Variant{{Percent: 100, Payload: "a"}}

	if _, err := DistributionRange(variants, 1); err == nil {
		t.Error("expected error for index out of range")
	}
	if _, err := DistributionRange(variants, -1); err == nil {
		t.Error("expected error for negative index")
	}
}

// --- Assignment distribution ---

func TestBucketAssignment_RoughlyEven(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 50, Payload: `{"alert":"A"}`},
		{Percent: 50, Payload: `{"alert":"B"}`},
	}
	r0, err := DistributionRange(variants, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const n = 10000
	hits := 0
	for i := 0; i < n; i++ {
		if InRange(fmt.Sprintf("installation-%d", i), "campaign-salt", r0.Min, r0.Max) {
			hits++
		}
	}

	// md5 даёт практически равномерное распределение: 4% от n — это 8 сигм.
	if hits < n/2-400 || hits > n/2+400 {
		t.Errorf("50%% variant got %d of %d recipients", hits, n)
	}
}

func TestBucketValue_UniformAcrossBins(t *testing.T) {
	// 16 корзин по старшему nibble; md5 на детерминированных входах
	// раскладывается практически равномерно.
	const n = 10000
	binSize := DistributionMax / 16

	var bins [16]int
	for i := 0; i < n; i++ {
		v := BucketValue(fmt.Sprintf("installation-%d", i), "salt")
		bins[v/binSize]++
	}

	want := n / 16 // 625
	for i, got := range bins {
		if got < want-150 || got > want+150 {
			t.Errorf("bin %d has %d values, want about %d", i, got, want)
		}
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Min: 100, Max: 200}

	if !r.Contains(100) || !r.Contains(150) || !r.Contains(199) {
		t.Error("lower boundary and interior must be contained")
	}
	if r.Contains(99) || r.Contains(200) || r.Contains(201) {
		t.Error("upper boundary is exclusive")
	}
}

func TestDistributionRange_BoundaryBelongsToOneVariant(t *testing.T) {
	variants := []domain.Variant{
		{Percent: 51, Payload: `{"alert":"A"}`},
		{Percent: 49, Payload: `{"alert":"B"}`},
	}

	ranges := make([]Range, len(variants))
	for i := range variants {
		r, err := DistributionRange(variants, i)
		if err != nil {
			t.Fatalf("variant %d: unexpected error: %v", i, err)
		}
		ranges[i] = r
	}

	// Каждое значение пространства, включая общую границу 136902083,
	// принадлежит ровно одному варианту: иначе получатель на стыке
	// получил бы оба payload-а.
	for _, v := range []int64{0, 136902082, 136902083, 136902084, DistributionMax - 1} {
		owners := 0
		for _, r := range ranges {
			if r.Contains(v) {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("bucket value %d belongs to %d variants, want exactly 1", v, owners)
		}
	}
}
