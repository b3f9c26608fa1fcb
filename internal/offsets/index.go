package offsets

import (
	"sort"
	"time"

	"github.com/shaiso/Megaphone/internal/domain"
)

// Index — иммутабельный снимок соответствия зона ↔ offset, вычисленный
// на конкретный момент времени (DST учитывается этим моментом).
//
// Снимок никогда не мутируется после Compute: scan loop читает его без
// блокировок, обновление — атомарная замена указателя в Keeper.
type Index struct {
	zoneToOffset  map[string]domain.UTCOffset
	offsetToZones map[domain.UTCOffset][]string
	computedAt    time.Time
}

// Compute строит снимок по всем известным IANA-зонам на момент asOf.
// Зоны, которые не знает база данных рантайма, молча пропускаются:
// индекс — производная таблица, а не источник истины.
func Compute(asOf time.Time) *Index {
	idx := &Index{
		zoneToOffset:  make(map[string]domain.UTCOffset, len(zoneNames)),
		offsetToZones: make(map[domain.UTCOffset][]string),
		computedAt:    asOf,
	}

	for _, name := range zoneNames {
		loc, err := time.LoadLocation(name)
		if err != nil {
			continue
		}
		_, sec := asOf.In(loc).Zone()
		// Конвенция moment-timezone: минуты к западу от UTC.
		off := domain.UTCOffset(-sec / 60)
		idx.zoneToOffset[name] = off
		idx.offsetToZones[off] = append(idx.offsetToZones[off], name)
	}

	// Детерминированный порядок зон внутри offset: representative-зона
	// одинакова у всех процессов.
	for _, zones := range idx.offsetToZones {
		sort.Strings(zones)
	}

	return idx
}

// ComputedAt возвращает момент, на который вычислен снимок.
func (ix *Index) ComputedAt() time.Time {
	return ix.computedAt
}

// ZoneOffset возвращает offset зоны.
func (ix *Index) ZoneOffset(zone string) (domain.UTCOffset, bool) {
	off, ok := ix.zoneToOffset[zone]
	return off, ok
}

// Zones возвращает все зоны с данным offset (отсортированы по имени).
func (ix *Index) Zones(off domain.UTCOffset) []string {
	return ix.offsetToZones[off]
}

// Offsets возвращает все известные offsets в возрастающем порядке.
func (ix *Index) Offsets() []domain.UTCOffset {
	out := make([]domain.UTCOffset, 0, len(ix.offsetToZones))
	for off := range ix.offsetToZones {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Representative возвращает одну зону offset-а. Все зоны одного offset
// показывают одинаковое местное время, поэтому любой достаточно;
// берётся лексикографически первая — она одинакова у всех процессов.
func (ix *Index) Representative(off domain.UTCOffset) (string, bool) {
	zones := ix.offsetToZones[off]
	if len(zones) == 0 {
		return "", false
	}
	return zones[0], true
}

// Size возвращает число известных зон.
func (ix *Index) Size() int {
	return len(ix.zoneToOffset)
}
