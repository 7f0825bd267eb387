package ir

import "strings"

// MemoryEffect is how much of memory a call may touch.
type MemoryEffect uint8

const (
	MemoryNone MemoryEffect = iota
	MemoryRead
	MemoryReadWrite
)

// Attrs summarises the function attributes relevant to side-effect analysis.
// The zero value is the conservative "may do anything" summary.
type Attrs struct {
	NoUnwind   bool
	WillReturn bool
	// MemoryKnown is set once a memory attribute was seen; without it Memory is ignored.
	MemoryKnown bool
	Memory      MemoryEffect
}

// Merge combines call-site and callee attributes: any guarantee from either side holds.
func (a Attrs) Merge(b Attrs) Attrs {
	out := Attrs{
		NoUnwind:   a.NoUnwind || b.NoUnwind,
		WillReturn: a.WillReturn || b.WillReturn,
	}
	switch {
	case a.MemoryKnown && b.MemoryKnown:
		out.MemoryKnown = true
		out.Memory = min(a.Memory, b.Memory)
	case a.MemoryKnown:
		out.MemoryKnown, out.Memory = true, a.Memory
	case b.MemoryKnown:
		out.MemoryKnown, out.Memory = true, b.Memory
	}
	return out
}

// MayWriteMemory reports whether the summary allows writes.
func (a Attrs) MayWriteMemory() bool {
	return !a.MemoryKnown || a.Memory == MemoryReadWrite
}

// Apply folds one attribute token, e.g. "nounwind" or "memory(argmem: read)".
func (a *Attrs) Apply(attr string) {
	switch {
	case attr == "nounwind":
		a.NoUnwind = true
	case attr == "willreturn":
		a.WillReturn = true
	case attr == "readnone":
		a.setMemory(MemoryNone)
	case attr == "readonly":
		a.setMemory(MemoryRead)
	case strings.HasPrefix(attr, "memory("):
		body := attr[len("memory(") : len(attr)-1]
		switch {
		case strings.Contains(body, "write"):
			a.setMemory(MemoryReadWrite)
		case strings.Contains(body, "read"):
			a.setMemory(MemoryRead)
		default:
			a.setMemory(MemoryNone)
		}
	}
}

func (a *Attrs) setMemory(m MemoryEffect) {
	if a.MemoryKnown {
		a.Memory = min(a.Memory, m)
		return
	}
	a.MemoryKnown, a.Memory = true, m
}
