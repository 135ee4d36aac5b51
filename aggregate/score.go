package aggregate

import (
	"math"
	"sort"
)

const weatherWeight = 1.5

// Score ranks a candidate by weather fit and review-weighted rating.
func Score(c Candidate, weatherScore float64) float64 {
	return weatherWeight*weatherScore + c.Venue.Rating*math.Log1p(float64(c.Venue.UserRatingsTotal))
}

// SelectDiverse picks up to k items. The first pass walks items by descending score
// and takes the best item of each bucket; the second fills the remaining slots by
// score alone. Equal scores keep input order.
func SelectDiverse[T any](items []T, score func(T) float64, bucket func(T) string, k int) []T {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = score(it)
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	taken := make([]bool, len(items))
	used := map[string]bool{}
	picked := make([]int, 0, k)

	for _, i := range order {
		if len(picked) == k {
			break
		}
		b := bucket(items[i])
		if used[b] {
			continue
		}
		used[b] = true
		taken[i] = true
		picked = append(picked, i)
	}
	for _, i := range order {
		if len(picked) == k {
			break
		}
		if !taken[i] {
			taken[i] = true
			picked = append(picked, i)
		}
	}

	out := make([]T, len(picked))
	for j, i := range picked {
		out[j] = items[i]
	}
	return out
}
