package core

// itemKind distinguishes the things a function can need passed in.
type itemKind int

const (
	itemGlobal itemKind = iota
	itemInput
	itemOutput
	itemStdin
)

type item struct {
	kind   itemKind
	global GlobalID
}

func (u *Usage) items() []item {
	out := make([]item, 0, len(u.Globals)+3)
	for _, g := range u.Globals {
		out = append(out, item{kind: itemGlobal, global: g})
	}
	if u.Input {
		out = append(out, item{kind: itemInput})
	}
	if u.Output {
		out = append(out, item{kind: itemOutput})
	}
	if u.Stdin {
		out = append(out, item{kind: itemStdin})
	}
	return out
}

func (u *Usage) add(it item) {
	switch it.kind {
	case itemGlobal:
		u.AddGlobal(it.global)
	case itemInput:
		u.Input = true
	case itemOutput:
		u.Output = true
	case itemStdin:
		u.Stdin = true
	}
}

// Closure is the transitive usage of every function: what it uses itself
// plus what its callees need, up to but excluding the entry point.
type Closure struct {
	usage map[FuncID]*Usage
}

// Of returns the usage of fn. Functions that need nothing yield an empty,
// non-nil usage.
func (c *Closure) Of(fn FuncID) *Usage {
	if u, ok := c.usage[fn]; ok {
		return u
	}
	return newUsage()
}

// Propagate pushes every direct usage up the reverse call graph. Seeds are
// processed in arena order and each item is walked breadth-first, so the
// resulting global order is direct uses first, then propagated ones in
// discovery order. Recursive call graphs terminate through the visited set.
func Propagate(a *Arena, g *CallGraph, cl *Classification) *Closure {
	c := &Closure{usage: make(map[FuncID]*Usage)}
	get := func(fn FuncID) *Usage {
		u, ok := c.usage[fn]
		if !ok {
			u = newUsage()
			c.usage[fn] = u
		}
		return u
	}

	for _, fn := range a.Functions() {
		d, ok := cl.Direct[fn.ID]
		if !ok {
			continue
		}
		u := get(fn.ID)
		for _, it := range d.items() {
			u.add(it)
		}
		u.Reasons = append(u.Reasons, d.Reasons...)
	}

	for _, fn := range a.Functions() {
		d, ok := cl.Direct[fn.ID]
		if !ok {
			continue
		}
		for _, it := range d.items() {
			visited := map[FuncID]bool{fn.ID: true}
			queue := []FuncID{fn.ID}
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				for _, caller := range g.Callers[cur] {
					if visited[caller] {
						continue
					}
					visited[caller] = true
					if a.Function(caller).IsEntry {
						continue
					}
					u := get(caller)
					u.add(it)
					u.addReason(ReasonPropagated)
					queue = append(queue, caller)
				}
			}
		}
	}
	return c
}
