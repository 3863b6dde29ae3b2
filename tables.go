package harmony

import "container/list"

// tablePool is a counting permit over a fixed set of table IDs.
// Released tables go straight to the oldest waiter, so waiters are served FIFO.
type tablePool struct {
	total int
	// free holds unassigned table IDs, lowest ID on top.
	free    []int
	waiters *list.List
}

func newTablePool(total int) *tablePool {
	free := make([]int, total)
	for i := range free {
		free[i] = total - 1 - i
	}
	return &tablePool{total: total, free: free, waiters: list.New()}
}

func (p *tablePool) freeCount() int {
	return len(p.free)
}

// tryAcquire takes a free table unless one is free but already promised to a waiter.
func (p *tablePool) tryAcquire() (int, bool) {
	if len(p.free) == 0 || p.waiters.Len() > 0 {
		return NoTable, false
	}
	table := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return table, true
}

func (p *tablePool) enqueue(token *AdmissionToken) *list.Element {
	return p.waiters.PushBack(token)
}

func (p *tablePool) remove(e *list.Element) {
	p.waiters.Remove(e)
}

// release returns the table to the pool. When an actor is waiting the table is handed
// to it instead and that actor is returned.
func (p *tablePool) release(table int) *AdmissionToken {
	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		return front.Value.(*AdmissionToken)
	}
	p.free = append(p.free, table)
	return nil
}
