package rv64

// registers.go holds the general-purpose register file.

import (
	"fmt"
	"strings"
)

// NumGPR is the number of general-purpose registers in the RV64I register
// file.
const NumGPR = 32

// Registers is the set of general-purpose registers plus the counters used
// for instrumentation. x0 is hard-wired to zero: Get always returns 0 for it
// and Set silently discards writes, exactly as the ISA requires.
type Registers struct {
	gpr [NumGPR]Word

	// Counters is nil unless instrumentation is enabled with
	// WithRegisterCounters. When present, every Get/Set increments the
	// matching slot.
	Counters *RegisterCounters
}

// RegisterCounters tracks how often each register is read or written. It
// exists so tests and tooling can answer "which registers does this program
// actually touch" without disassembling it.
type RegisterCounters struct {
	Reads  [NumGPR]uint64
	Writes [NumGPR]uint64
}

// Get returns the value of register i. Reading x0 always returns zero.
func (r *Registers) Get(i GPR) Word {
	if r.Counters != nil {
		r.Counters.Reads[i]++
	}

	if i == X0 {
		return 0
	}

	return r.gpr[i]
}

// Set writes v to register i. Writing x0 is a silent no-op.
func (r *Registers) Set(i GPR, v Word) {
	if r.Counters != nil {
		r.Counters.Writes[i]++
	}

	if i == X0 {
		return
	}

	r.gpr[i] = v
}

// Snapshot copies the full register file, for saving a process context
// across a cooperative context switch (internal/machine).
func (r *Registers) Snapshot() [NumGPR]Word {
	return r.gpr
}

// Restore replaces the full register file from a saved snapshot. x0 stays
// zero regardless of what g[0] holds, matching Get/Set's hard-wiring.
func (r *Registers) Restore(g [NumGPR]Word) {
	r.gpr = g
	r.gpr[X0] = 0
}

func (r *Registers) String() string {
	var b strings.Builder

	for i := 0; i < NumGPR; i += 2 {
		fmt.Fprintf(&b, "x%-2d: %s   x%-2d: %s\n", i, hexWord(r.gpr[i]), i+1, hexWord(r.gpr[i+1]))
	}

	return b.String()
}
