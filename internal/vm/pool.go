package vm

// ObjectPool is a per-VM (per-thread) allocator for heap-resident
// Str and List values — the pool and register file are thread-local
// to their VM, so no synchronization is needed here. Allocation
// reuses a freed slot when one is available, bumping its generation
// so stale handles into the old occupant fail to resolve.
//
// Lists never form cycles — a List may contain Str and primitives but
// the language forbids mutable aliasing of list cells, copying on
// write to preserve value semantics — so reclamation is a single
// non-recursive-cycle mark/sweep over live frames at safe points, not
// a full tracing collector.
type ObjectPool struct {
	strs     []strSlot
	strFree  []uint32
	lists    []listSlot
	listFree []uint32
}

type strSlot struct {
	generation uint32
	live       bool
	val        string
}

type listSlot struct {
	generation uint32
	live       bool
	val        []Value
}

func NewObjectPool() *ObjectPool {
	return &ObjectPool{}
}

// AllocStr interns s into a fresh or reused slot.
func (p *ObjectPool) AllocStr(s string) Handle {
	if n := len(p.strFree); n > 0 {
		idx := p.strFree[n-1]
		p.strFree = p.strFree[:n-1]
		slot := &p.strs[idx]
		slot.live = true
		slot.val = s
		slot.generation++
		return Handle{Kind: HandleStr, Index: idx, Generation: slot.generation}
	}
	p.strs = append(p.strs, strSlot{generation: 1, live: true, val: s})
	return Handle{Kind: HandleStr, Index: uint32(len(p.strs) - 1), Generation: 1}
}

// AllocList takes ownership of elems (the caller must not retain the
// backing slice under a different handle — every list mutation site
// in this package allocates a fresh slice first).
func (p *ObjectPool) AllocList(elems []Value) Handle {
	if n := len(p.listFree); n > 0 {
		idx := p.listFree[n-1]
		p.listFree = p.listFree[:n-1]
		slot := &p.lists[idx]
		slot.live = true
		slot.val = elems
		slot.generation++
		return Handle{Kind: HandleList, Index: idx, Generation: slot.generation}
	}
	p.lists = append(p.lists, listSlot{generation: 1, live: true, val: elems})
	return Handle{Kind: HandleList, Index: uint32(len(p.lists) - 1), Generation: 1}
}

// Str resolves a string handle, reporting false if the slot has been
// reclaimed or reused for a different generation.
func (p *ObjectPool) Str(h Handle) (string, bool) {
	if int(h.Index) >= len(p.strs) {
		return "", false
	}
	slot := p.strs[h.Index]
	if !slot.live || slot.generation != h.Generation {
		return "", false
	}
	return slot.val, true
}

// List resolves a list handle the same way Str does.
func (p *ObjectPool) List(h Handle) ([]Value, bool) {
	if int(h.Index) >= len(p.lists) {
		return nil, false
	}
	slot := p.lists[h.Index]
	if !slot.live || slot.generation != h.Generation {
		return nil, false
	}
	return slot.val, true
}

// LiveCount is the number of currently-allocated (not-yet-reclaimed)
// slots across both pools, consulted by the VM's pre-call headroom
// check.
func (p *ObjectPool) LiveCount() int {
	return len(p.strs) - len(p.strFree) + len(p.lists) - len(p.listFree)
}

// Sweep marks every Str/List handle reachable from the given register
// windows (one per live frame, system or virtual) and reclaims every
// unmarked slot. It runs only at safe points — call boundaries and,
// optionally, loop back-edges — so ordinary handlers execute between
// sweeps without any GC interference.
func (p *ObjectPool) Sweep(roots [][]Value) {
	markedStr := make([]bool, len(p.strs))
	markedList := make([]bool, len(p.lists))

	var mark func(v Value)
	mark = func(v Value) {
		switch v.Kind {
		case KStr:
			if int(v.H.Index) < len(markedStr) {
				markedStr[v.H.Index] = true
			}
		case KList:
			if int(v.H.Index) < len(markedList) && !markedList[v.H.Index] {
				markedList[v.H.Index] = true
				if elems, ok := p.List(v.H); ok {
					for _, e := range elems {
						mark(e)
					}
				}
			}
		}
	}
	for _, window := range roots {
		for _, v := range window {
			mark(v)
		}
	}

	for i := range p.strs {
		if p.strs[i].live && !markedStr[i] {
			p.strs[i].live = false
			p.strs[i].val = ""
			p.strFree = append(p.strFree, uint32(i))
		}
	}
	for i := range p.lists {
		if p.lists[i].live && !markedList[i] {
			p.lists[i].live = false
			p.lists[i].val = nil
			p.listFree = append(p.listFree, uint32(i))
		}
	}
}
