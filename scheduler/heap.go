package scheduler

// 按到期时间排序的小根堆，元素记录自身下标以便原地更新
type overrideHeap []*item

func (h overrideHeap) Len() int { return len(h) }

func (h overrideHeap) Less(i, j int) bool {
	return h[i].Expiry.Before(h[j].Expiry)
}

func (h overrideHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *overrideHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *overrideHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
