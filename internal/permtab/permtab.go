// Package permtab implements the Lehmer-code bijection between a rank in
// [0, n!) and a permutation of [0, n).
package permtab

import "fmt"

// Factorial returns n! for n >= 0. Panics for negative n; callers only ever
// pass small n (bounded by num_players <= 10).
func Factorial(n int) int64 {
	if n < 0 {
		panic(fmt.Sprintf("permtab: factorial of negative n=%d", n))
	}
	var result int64 = 1
	for i := 2; i <= n; i++ {
		result *= int64(i)
	}
	return result
}

// Unrank decodes rank into the permutation of [0, n) with that Lehmer-code
// rank. It errors if rank is outside [0, n!).
func Unrank(rank int64, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("permtab: negative n=%d", n)
	}
	total := Factorial(n)
	if rank < 0 || rank >= total {
		return nil, fmt.Errorf("permtab: rank %d out of range [0, %d)", rank, total)
	}

	fact := make([]int64, n+1)
	fact[0] = 1
	for i := 1; i <= n; i++ {
		fact[i] = fact[i-1] * int64(i)
	}

	lehmer := make([]int, n)
	x := rank
	for i := n - 1; i >= 0; i-- {
		lehmer[n-1-i] = int(x / fact[i])
		x %= fact[i]
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}

	perm := make([]int, 0, n)
	for _, d := range lehmer {
		perm = append(perm, pool[d])
		pool = append(pool[:d], pool[d+1:]...)
	}
	return perm, nil
}

// Rank computes the Lehmer-code rank of perm, a permutation of [0, len(perm)).
func Rank(perm []int) int64 {
	n := len(perm)
	fact := make([]int64, n+1)
	fact[0] = 1
	for i := 1; i <= n; i++ {
		fact[i] = fact[i-1] * int64(i)
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}

	var rank int64
	for i := 0; i < n; i++ {
		idx := indexOf(pool, perm[i])
		rank += int64(idx) * fact[n-1-i]
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return rank
}

func indexOf(pool []int, v int) int {
	for i, p := range pool {
		if p == v {
			return i
		}
	}
	return -1
}
