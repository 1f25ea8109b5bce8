package rv64

// perf.go tracks execution statistics: instruction counts, branch outcomes
// keyed by PC, and a bounded hot-path table.

// hotPathCapacity bounds the hot-path table; once full, additions evict the
// least-recently-seen entry.
const hotPathCapacity = 256

// branchStat records how often a branch at a given PC was taken or not.
type branchStat struct {
	Taken    uint64
	NotTaken uint64
}

// PerfCounters accumulates execution statistics for a VM.
type PerfCounters struct {
	InstructionsExecuted uint64

	branches map[Word]*branchStat

	hotPath    map[Word]uint64
	hotPathLRU []Word // oldest first
}

func (p *PerfCounters) init() {
	if p.branches == nil {
		p.branches = make(map[Word]*branchStat)
	}

	if p.hotPath == nil {
		p.hotPath = make(map[Word]uint64)
	}
}

// RecordBranch increments the taken/not-taken counter for the branch at pc.
func (p *PerfCounters) RecordBranch(pc Word, taken bool) {
	p.init()

	stat, ok := p.branches[pc]
	if !ok {
		stat = &branchStat{}
		p.branches[pc] = stat
	}

	if taken {
		stat.Taken++
	} else {
		stat.NotTaken++
	}
}

// BranchStats returns the taken/not-taken counts recorded for pc.
func (p *PerfCounters) BranchStats(pc Word) (taken, notTaken uint64) {
	p.init()

	if stat, ok := p.branches[pc]; ok {
		return stat.Taken, stat.NotTaken
	}

	return 0, 0
}

// RecordFetch records an execution at pc in the hot-path table, evicting the
// least-recently-seen entry if the table is full.
func (p *PerfCounters) RecordFetch(pc Word) {
	p.init()

	if _, ok := p.hotPath[pc]; ok {
		p.hotPath[pc]++
		p.touchLRU(pc)

		return
	}

	if len(p.hotPath) >= hotPathCapacity {
		evict := p.hotPathLRU[0]
		p.hotPathLRU = p.hotPathLRU[1:]
		delete(p.hotPath, evict)
	}

	p.hotPath[pc] = 1
	p.hotPathLRU = append(p.hotPathLRU, pc)
}

func (p *PerfCounters) touchLRU(pc Word) {
	for i, w := range p.hotPathLRU {
		if w == pc {
			p.hotPathLRU = append(p.hotPathLRU[:i], p.hotPathLRU[i+1:]...)
			p.hotPathLRU = append(p.hotPathLRU, pc)

			return
		}
	}
}

// HotPathCount returns the recorded execution count for pc.
func (p *PerfCounters) HotPathCount(pc Word) uint64 {
	p.init()

	return p.hotPath[pc]
}
