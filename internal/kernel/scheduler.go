package kernel

// scheduler.go is the cooperative round-robin scheduler (spec.md §4.8): a
// cursor over ready processes, no preemption. Grounded on spec.md §9's
// "scheduler as index walker" design note; the index-walk idiom itself
// follows internal/vm/intr.go's priority-table walk in Requested.

// Scheduler tracks the currently running process and round-robins over
// ready processes on schedule_next.
type Scheduler struct {
	current uint64
}

// SetCurrent implements set_current.
func (s *Scheduler) SetCurrent(id uint64) { s.current = id }

// GetCurrent implements get_current.
func (s *Scheduler) GetCurrent() uint64 { return s.current }

// MarkReady implements mark_ready.
func (s *Scheduler) MarkReady(processes *ProcessTable, id uint64) bool {
	return processes.SetState(id, StateReady)
}

// MarkBlocked implements mark_blocked.
func (s *Scheduler) MarkBlocked(processes *ProcessTable, id uint64) bool {
	return processes.SetState(id, StateBlocked)
}

// ScheduleNext implements schedule_next: round-robin over ready processes,
// starting immediately after the current index (spec.md §4.8). It does not
// install its result as current; callers do that via SetCurrent. Returns
// (0, false) if no process is ready.
func (s *Scheduler) ScheduleNext(processes *ProcessTable) (uint64, bool) {
	ready := processes.ReadyIDs()
	if len(ready) == 0 {
		return 0, false
	}

	start := 0

	for i, id := range ready {
		if id == s.current {
			start = i + 1
			break
		}
	}

	return ready[start%len(ready)], true
}
