package db

import (
	"math"

	"github.com/nickyhof/EmbedDB/core"
	"github.com/zeebo/xxh3"
)

type aggregateKind int

const (
	aggCount aggregateKind = iota
	aggSum
	aggAvg
	aggMin
	aggMax
)

var aggregateKinds = map[string]aggregateKind{
	"COUNT": aggCount,
	"SUM":   aggSum,
	"AVG":   aggAvg,
	"MIN":   aggMin,
	"MAX":   aggMax,
}

// aggregateSpec is one aggregate call of a grouped query. arg is bound
// against the input rows and is nil for COUNT(*).
type aggregateSpec struct {
	kind     aggregateKind
	arg      expression
	distinct bool
	typ      core.ColumnType
}

// aggregateType derives the result type: COUNT is INTEGER, SUM widens
// integers to BIGINT, AVG of exact numbers is DECIMAL, MIN and MAX keep
// the argument type.
func aggregateType(kind aggregateKind, arg core.ColumnType) (core.ColumnType, error) {
	switch kind {
	case aggCount:
		return core.IntegerType, nil
	case aggMin, aggMax:
		return arg, nil
	}
	switch {
	case arg == core.DoubleType:
		return core.DoubleType, nil
	case kind == aggSum && (arg == core.IntegerType || arg == core.BigIntType):
		return core.BigIntType, nil
	case arg.IsNumeric() || arg.IsString() || arg == core.NullType:
		return core.DecimalType, nil
	}
	return core.NullType, core.NewConstraintError(core.CodeTypeMismatch, "cannot aggregate %s values", arg)
}

// accumulator folds the values of one group for one aggregate.
type accumulator struct {
	spec  *aggregateSpec
	count int64
	acc   core.Value
	seen  map[string]struct{}
	buf   []byte
}

func newAccumulator(spec *aggregateSpec) *accumulator {
	a := &accumulator{spec: spec, acc: core.Null(spec.typ)}
	if spec.distinct {
		a.seen = make(map[string]struct{})
	}
	return a
}

func (a *accumulator) add(ctx *evalContext, row core.Row) error {
	if a.spec.arg == nil {
		a.count++
		return nil
	}
	v, err := a.spec.arg.eval(ctx, row)
	if err != nil {
		return err
	}
	if v.IsNull() {
		return nil
	}
	if a.seen != nil {
		a.buf = v.AppendKey(a.buf[:0])
		if _, dup := a.seen[string(a.buf)]; dup {
			return nil
		}
		a.seen[string(a.buf)] = struct{}{}
	}
	a.count++

	switch a.spec.kind {
	case aggSum, aggAvg:
		converted, err := core.Convert(v, a.spec.typ)
		if err != nil {
			return err
		}
		if a.acc.IsNull() {
			a.acc = converted
			return nil
		}
		a.acc, err = core.Arithmetic(core.OpAdd, a.acc, converted)
		return err
	case aggMin, aggMax:
		if a.acc.IsNull() {
			a.acc = v
			return nil
		}
		c, err := core.Compare(v, a.acc)
		if err != nil {
			return err
		}
		if (a.spec.kind == aggMin && c < 0) || (a.spec.kind == aggMax && c > 0) {
			a.acc = v
		}
	}
	return nil
}

func (a *accumulator) result() (core.Value, error) {
	switch a.spec.kind {
	case aggCount:
		if a.count > math.MaxInt32 {
			return core.Value{}, core.NewConstraintError(core.CodeNumericOverflow, "COUNT of %d rows exceeds INTEGER", a.count)
		}
		return core.NewInteger(int32(a.count)), nil
	case aggAvg:
		if a.count == 0 {
			return core.Null(a.spec.typ), nil
		}
		return core.Arithmetic(core.OpDivide, a.acc, core.NewBigInt(a.count))
	}
	return a.acc, nil
}

// group is one GROUP BY bucket: its key values and running aggregates.
type group struct {
	key          core.Row
	accumulators []*accumulator
}

// groupTable buckets rows by the xxh3 hash of their key encoding and keeps
// groups in first-seen order. Keys that collide are told apart by value.
type groupTable struct {
	specs   []*aggregateSpec
	buckets map[uint64][]*group
	order   []*group
	buf     []byte
}

func newGroupTable(specs []*aggregateSpec) *groupTable {
	return &groupTable{specs: specs, buckets: make(map[uint64][]*group)}
}

func (t *groupTable) find(key core.Row) *group {
	t.buf = t.buf[:0]
	for _, v := range key {
		t.buf = v.AppendKey(t.buf)
	}
	hash := xxh3.Hash(t.buf)
	for _, g := range t.buckets[hash] {
		if core.CompareKeys(core.Key(g.key), core.Key(key)) == 0 {
			return g
		}
	}
	g := &group{key: key, accumulators: make([]*accumulator, len(t.specs))}
	for i, spec := range t.specs {
		g.accumulators[i] = newAccumulator(spec)
	}
	t.buckets[hash] = append(t.buckets[hash], g)
	t.order = append(t.order, g)
	return g
}

// seenRows remembers distinct rows for SELECT DISTINCT.
type seenRows struct {
	buckets map[uint64][]core.Row
	buf     []byte
}

func newSeenRows() *seenRows {
	return &seenRows{buckets: make(map[uint64][]core.Row)}
}

// add reports whether row was not seen before.
func (s *seenRows) add(row core.Row) bool {
	s.buf = s.buf[:0]
	for _, v := range row {
		s.buf = v.AppendKey(s.buf)
	}
	hash := xxh3.Hash(s.buf)
	for _, other := range s.buckets[hash] {
		if core.CompareKeys(core.Key(other), core.Key(row)) == 0 {
			return false
		}
	}
	s.buckets[hash] = append(s.buckets[hash], row)
	return true
}
