package domain

import "math/rand"

// weightedChoice 按权重从 items 中选择一项。权重全为 0 时退化为均匀选择。
func weightedChoice[T any](rng *rand.Rand, items []T, weights []float64) T {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return items[rng.Intn(len(items))]
	}

	roll := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if roll < acc {
			return items[i]
		}
	}
	return items[len(items)-1]
}

// uniform 返回 [lo, hi) 区间的均匀随机数
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// randIntRange 返回 [lo, hi] 区间的随机整数
func randIntRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// boundedNormal 有界正态抽样：以 mean 为中心、(hi-lo)/6 为标准差，越界时截断。
// 用于金额等需要向区间内某位置聚集的分布。
func boundedNormal(rng *rand.Rand, lo, hi, mean float64) float64 {
	if hi <= lo {
		return lo
	}
	sigma := (hi - lo) / 6
	v := rng.NormFloat64()*sigma + mean
	return clampFloat(v, lo, hi)
}
