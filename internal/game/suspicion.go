package game

// Ledger tracks pairwise suspicion scores. Rows are observers, columns are
// targets, values live in [0, 1]. Self-suspicion is pinned to zero and every
// other pair starts at the 0.5 prior. All writes funnel through Adjust so
// the bounds hold no matter what deltas providers return.
type Ledger struct {
	ids []PlayerID
	idx map[PlayerID]int
	m   [][]float64
}

// SuspicionShift is one observer's requested adjustment against a target.
// Deltas are applied additively and clamped by the ledger.
type SuspicionShift struct {
	Target PlayerID `json:"target"`
	Delta  float64  `json:"delta"`
}

// NewLedger builds a ledger over the given players.
func NewLedger(ids []PlayerID) *Ledger {
	l := &Ledger{
		ids: append([]PlayerID(nil), ids...),
		idx: make(map[PlayerID]int, len(ids)),
		m:   make([][]float64, len(ids)),
	}
	for i, id := range l.ids {
		l.idx[id] = i
		row := make([]float64, len(ids))
		for j := range row {
			if i != j {
				row[j] = 0.5
			}
		}
		l.m[i] = row
	}
	return l
}

// Score returns observer's current suspicion of target. Unknown pairs read
// as the 0.5 prior so callers never branch on membership.
func (l *Ledger) Score(observer, target PlayerID) float64 {
	i, ok := l.idx[observer]
	if !ok {
		return 0.5
	}
	j, ok := l.idx[target]
	if !ok {
		return 0.5
	}
	return l.m[i][j]
}

// Adjust applies a bounded delta to observer's view of target and returns
// the resulting score. Self-adjustments and unknown players are no-ops.
func (l *Ledger) Adjust(observer, target PlayerID, delta float64) float64 {
	i, ok := l.idx[observer]
	if !ok {
		return 0.5
	}
	j, ok := l.idx[target]
	if !ok {
		return 0.5
	}
	if i == j {
		return 0
	}
	l.m[i][j] = clampUnit(l.m[i][j] + delta)
	return l.m[i][j]
}

// Row returns observer's scores against every other player as a fresh map.
func (l *Ledger) Row(observer PlayerID) map[PlayerID]float64 {
	i, ok := l.idx[observer]
	if !ok {
		return nil
	}
	out := make(map[PlayerID]float64, len(l.ids)-1)
	for j, id := range l.ids {
		if j == i {
			continue
		}
		out[id] = l.m[i][j]
	}
	return out
}

// IDs returns the ledger's player ordering.
func (l *Ledger) IDs() []PlayerID {
	return append([]PlayerID(nil), l.ids...)
}

// Snapshot returns a deep copy of the matrix in ID order.
func (l *Ledger) Snapshot() [][]float64 {
	out := make([][]float64, len(l.m))
	for i, row := range l.m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
