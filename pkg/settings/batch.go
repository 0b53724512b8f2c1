package settings

import "maps"

type opKind uint8

const (
	opPut opKind = iota
	opRemove
	opClear
)

// Op is one recorded mutation.
type Op struct {
	kind  opKind
	Key   string
	Value Value
}

// IsPut, IsRemove and IsClear classify the operation.
func (o Op) IsPut() bool    { return o.kind == opPut }
func (o Op) IsRemove() bool { return o.kind == opRemove }
func (o Op) IsClear() bool  { return o.kind == opClear }

// Batch records editor operations. Backends embed it and implement Commit.
type Batch struct {
	ops []Op
}

func (b *Batch) Put(key string, v Value) {
	b.ops = append(b.ops, Op{kind: opPut, Key: key, Value: v})
}

func (b *Batch) Remove(key string) {
	b.ops = append(b.ops, Op{kind: opRemove, Key: key})
}

func (b *Batch) Clear() {
	b.ops = append(b.ops, Op{kind: opClear})
}

// Ops returns the recorded operations in order.
func (b *Batch) Ops() []Op { return b.ops }

// Len returns the number of recorded operations.
func (b *Batch) Len() int { return len(b.ops) }

// Reset drops every recorded operation.
func (b *Batch) Reset() { b.ops = nil }

// ApplyTo replays the recorded operations onto m.
func (b *Batch) ApplyTo(m map[string]Value) {
	for _, op := range b.ops {
		switch op.kind {
		case opPut:
			m[op.Key] = op.Value
		case opRemove:
			delete(m, op.Key)
		case opClear:
			clear(m)
		}
	}
}

// Clone returns a copy of m. The copy is never nil.
func Clone(m map[string]Value) map[string]Value {
	if m == nil {
		return map[string]Value{}
	}
	return maps.Clone(m)
}
