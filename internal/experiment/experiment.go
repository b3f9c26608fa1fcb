package experiment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/shaiso/Megaphone/internal/domain"
)

// nibbles — сколько старших hex-символов md5 берём как bucket value.
// 16^7 < 2^30, поэтому значение безопасно для точной целочисленной
// арифметики на любой платформе, включая дашборды на JS.
const nibbles = 7

// DistributionMax — верхняя граница пространства бакетов, 16^7 = 268435456.
const DistributionMax int64 = 1 << (4 * nibbles)

// BucketValue детерминированно отображает получателя в [0, DistributionMax).
// Соль — id кампании, чтобы разные кампании распределяли одного получателя
// независимо.
func BucketValue(objectID, salt string) int64 {
	sum := md5.Sum([]byte(objectID + salt))
	hexed := hex.EncodeToString(sum[:])
	v, err := strconv.ParseInt(hexed[:nibbles], 16, 64)
	if err != nil {
		// 7 hex-символов всегда парсятся; сюда попасть нельзя.
		panic(err)
	}
	return v
}

// Range — непрерывный диапазон бакетов варианта: Min включительно,
// Max исключительно. Полуинтервалы стыкуются без перекрытия, поэтому
// граничное значение принадлежит ровно одному варианту.
type Range struct {
	Min int64
	Max int64
}

// Contains возвращает true, если значение попадает в [Min, Max).
func (r Range) Contains(v int64) bool {
	return v >= r.Min && v < r.Max
}

// InRange возвращает true, если получатель принадлежит диапазону [min, max).
// Для последнего варианта max == DistributionMax, а BucketValue строго
// меньше DistributionMax, так что верхний край пространства не теряется.
func InRange(objectID, salt string, min, max int64) bool {
	v := BucketValue(objectID, salt)
	return v >= min && v < max
}

// DistributionRange возвращает диапазон бакетов варианта index.
//
// Веса вариантов должны суммироваться в 100% (целочисленные проценты) или
// в 1.0 ± 1% (доли; тогда они масштабируются в проценты). Перед раздачей
// диапазонов варианты сортируются по стабильному вторичному ключу
// (процент по убыванию, затем payload), чтобы независимые вызовы с
// по-разному упорядоченными слайсами давали одинаковые диапазоны.
// Последний диапазон растягивается до DistributionMax, поглощая ошибку
// округления.
func DistributionRange(variants []domain.Variant, index int) (Range, error) {
	if index < 0 || index >= len(variants) {
		return Range{}, fmt.Errorf("variant index %d out of range (%d variants)", index, len(variants))
	}

	percents, err := normalizePercents(variants)
	if err != nil {
		return Range{}, err
	}

	// Стабильный порядок раздачи диапазонов, не зависящий от порядка вызова.
	order := make([]int, len(variants))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := variants[order[a]], variants[order[b]]
		if va.Percent != vb.Percent {
			return va.Percent > vb.Percent
		}
		return va.Payload < vb.Payload
	})

	var min, max int64
	for pos, orig := range order {
		min = max
		max += int64(math.Round(percents[orig] * float64(DistributionMax) / 100))
		if pos == len(order)-1 {
			// Последний вариант поглощает ошибку округления.
			max = DistributionMax
		}
		if orig == index {
			return Range{Min: min, Max: max}, nil
		}
	}

	// index проверен выше; сюда попасть нельзя.
	return Range{}, fmt.Errorf("variant index %d not assigned", index)
}

// normalizePercents валидирует веса и приводит их к процентам.
func normalizePercents(variants []domain.Variant) ([]float64, error) {
	sum := 0.0
	for _, v := range variants {
		if v.Percent < 0 {
			return nil, fmt.Errorf("variant percent %v is negative", v.Percent)
		}
		sum += v.Percent
	}

	switch {
	case sum == 100:
		out := make([]float64, len(variants))
		for i, v := range variants {
			out[i] = v.Percent
		}
		return out, nil

	case math.Abs(sum-1.0) <= 0.01:
		// Веса заданы долями — масштабируем в проценты.
		out := make([]float64, len(variants))
		for i, v := range variants {
			out[i] = v.Percent / sum * 100
		}
		return out, nil

	default:
		return nil, fmt.Errorf("variant percents must add up to 100%% (got %v)", sum)
	}
}
