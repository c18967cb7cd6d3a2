package tracking

// matchCandidate is one admissible (track, detection) pairing
type matchCandidate struct {
	score    float64
	iou      float64
	trackID  uint64
	detIndex int
	index    int
}

// matchHeap orders candidates best first: higher score, then higher IoU,
// then lower track id, then lower detection index. The full ordering keeps
// assignment reproducible regardless of map iteration order.
type matchHeap []*matchCandidate

func (h matchHeap) Len() int { return len(h) }

func (h matchHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if a.iou != b.iou {
		return a.iou > b.iou
	}
	if a.trackID != b.trackID {
		return a.trackID < b.trackID
	}
	return a.detIndex < b.detIndex
}

func (h matchHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *matchHeap) Push(x any) {
	item := x.(*matchCandidate)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
