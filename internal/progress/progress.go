// Package progress models restore progress as an immutable snapshot plus a
// tracker that mutates it and broadcasts each change to zero or more
// subscribers. The shape mirrors a producer/consumer pair: exactly one
// worker goroutine mutates a tracker, and any number of SSE handlers read
// from it concurrently.
package progress

import "fmt"

// Status is the lifecycle stage of a single restore.
type Status int

const (
	// StatusCollecting is the default status: the plan is still being built
	// and totals are not yet known.
	StatusCollecting Status = iota
	StatusRestoring
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCollecting:
		return "collecting"
	case StatusRestoring:
		return "restoring"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Variable is a (current, total) pair used for the data/files/directories
// sub-progress of a restore.
type Variable struct {
	Current uint64
	Total   uint64
}

// Percentage returns the completion fraction in [0, 100]. A zero total
// reports 100 (nothing to do is fully done).
func (v Variable) Percentage() float64 {
	if v.Total == 0 {
		return 100
	}
	return float64(v.Current) / float64(v.Total) * 100
}

// Progress is the full snapshot of a restore's state. Files and Directories
// are nil for single-file restores, where only Data is meaningful.
type Progress struct {
	Data        Variable
	Files       *Variable
	Directories *Variable
	Status      Status
}

// Unit identifies which sub-variable a Count increments.
type Unit int

const (
	UnitData Unit = iota
	UnitFile
	UnitDirectory
)

// Count is an increment to apply to one sub-variable of a Progress.
type Count struct {
	Unit  Unit
	Count uint64
}

// Mul scales a unit into a Count, mirroring the original's `Unit * n` idiom.
func (u Unit) Mul(n uint64) Count {
	return Count{Unit: u, Count: n}
}

// Apply increments p's matching sub-variable by c.Count. Applying a File or
// Directory count to a Progress whose corresponding field is nil is a
// programming error — the plan must set totals before executing — and
// panics rather than silently corrupting state.
func (p *Progress) Apply(c Count) {
	if c.Count == 0 {
		return
	}
	switch c.Unit {
	case UnitData:
		p.Data.Current += c.Count
	case UnitFile:
		if p.Files == nil {
			panic(fmt.Sprintf("progress: file count applied before Files total was initialized"))
		}
		p.Files.Current += c.Count
	case UnitDirectory:
		if p.Directories == nil {
			panic(fmt.Sprintf("progress: directory count applied before Directories total was initialized"))
		}
		p.Directories.Current += c.Count
	}
}

// Delta computes the fields of p that differ from prev. A field that is
// unchanged is omitted (left at its zero value / nil) so that Delta(p, p) is
// empty and Delta(p, Progress{}) carries every set field of p.
type Delta struct {
	Data        *Variable
	Files       *Variable
	Directories *Variable
	Status      *Status
}

// IsEmpty reports whether the delta carries no changes at all.
func (d Delta) IsEmpty() bool {
	return d.Data == nil && d.Files == nil && d.Directories == nil && d.Status == nil
}

// ComputeDelta returns the fields of cur that differ from prev.
func ComputeDelta(prev, cur Progress) Delta {
	var d Delta
	if cur.Data != prev.Data {
		v := cur.Data
		d.Data = &v
	}
	if !variablePtrEqual(prev.Files, cur.Files) {
		d.Files = cur.Files
	}
	if !variablePtrEqual(prev.Directories, cur.Directories) {
		d.Directories = cur.Directories
	}
	if cur.Status != prev.Status {
		s := cur.Status
		d.Status = &s
	}
	return d
}

func variablePtrEqual(a, b *Variable) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
