package tracking

import (
	"container/heap"
	"math"
)

// assignGreedy pops the best candidate until every track or detection is taken
func assignGreedy(candidates []*matchCandidate) []*matchCandidate {
	pq := &matchHeap{}
	heap.Init(pq)
	for _, c := range candidates {
		heap.Push(pq, c)
	}

	// Prevent double update of tracks and detections
	reserved := make(map[uint64]bool)
	assigned := make(map[int]bool)
	var matches []*matchCandidate
	for pq.Len() > 0 {
		c := heap.Pop(pq).(*matchCandidate)
		if reserved[c.trackID] || assigned[c.detIndex] {
			continue
		}
		reserved[c.trackID] = true
		assigned[c.detIndex] = true
		matches = append(matches, c)
	}
	return matches
}

// assignHungarian pairs tracks and detections for the maximum total score.
// Rows are trackIDs in order, columns are detection indices. Inadmissible
// cells score zero and never reach the result.
func assignHungarian(candidates []*matchCandidate, trackIDs []uint64, numDetections int) []*matchCandidate {
	if len(candidates) == 0 {
		return nil
	}

	row := make(map[uint64]int, len(trackIDs))
	for i, id := range trackIDs {
		row[id] = i
	}

	// maximizing score is minimizing its negation
	cost := make([][]float64, len(trackIDs))
	for i := range cost {
		cost[i] = make([]float64, numDetections)
	}
	lookup := make(map[[2]int]*matchCandidate, len(candidates))
	for _, c := range candidates {
		cell := [2]int{row[c.trackID], c.detIndex}
		cost[cell[0]][cell[1]] = -c.score
		lookup[cell] = c
	}

	var matches []*matchCandidate
	for r, col := range solveAssignment(cost) {
		if c, ok := lookup[[2]int{r, col}]; ok {
			matches = append(matches, c)
		}
	}
	return matches
}

// solveAssignment runs Kuhn-Munkres with potentials on an n x m cost matrix
// and returns, per row, the assigned column or -1. The matrix is padded to a
// square with zero cost cells.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	dim := max(n, m)
	cell := func(i, j int) float64 {
		if i < n && j < m {
			return cost[i][j]
		}
		return 0
	}

	// 1-indexed; column 0 is the virtual start of each augmenting path
	inf := math.Inf(1)
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := cell(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] > 0 && p[j] <= n {
			result[p[j]-1] = j - 1
		}
	}
	return result
}
