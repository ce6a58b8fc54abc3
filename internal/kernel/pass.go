package kernel

import (
	"sync"
	"time"
)

// pass is one rewrite step over a unit. Passes run in the order of the
// passes table; each records edits in the unit's buffer and never sees the
// edits of the others applied.
type pass struct {
	name        string
	description string
	run         func(w *unitRewrite) error
}

var passes = []pass{
	{"argv", "bind command line arguments to input fields", (*unitRewrite).rewriteArgv},
	{"io", "comment out calls that cannot run on the device", (*unitRewrite).commentOutDisallowed},
	{"arrays", "give variable-length local arrays a fixed size", (*unitRewrite).clampArrays},
	{"globals", "remove file-scope variables and dereference their uses", (*unitRewrite).rewriteGlobals},
	{"stdin", "read stdin data from input fields", (*unitRewrite).rewriteStdin},
	{"signatures", "thread globals and I/O through parameters and arguments", (*unitRewrite).rewriteSignatures},
	{"entry", "turn the entry point into a kernel", (*unitRewrite).rewriteEntry},
	{"outputs", "record tested values in the output buffer", (*unitRewrite).recordOutputs},
	{"includes", "collect device headers for library calls", (*unitRewrite).collectHeaders},
}

// PassNames returns the rewrite passes in execution order.
func PassNames() []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.name
	}
	return out
}

// PassTiming is the time spent in one pass, summed over every unit.
type PassTiming struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// passTimings accumulates pass durations. Units run concurrently.
type passTimings struct {
	mu sync.Mutex
	d  map[string]time.Duration
}

func (t *passTimings) record(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.d == nil {
		t.d = make(map[string]time.Duration)
	}
	t.d[name] += d
}

// snapshot returns the timings in pass order.
func (t *passTimings) snapshot() []PassTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PassTiming, 0, len(passes))
	for _, p := range passes {
		out = append(out, PassTiming{Name: p.name, Duration: t.d[p.name]})
	}
	return out
}
