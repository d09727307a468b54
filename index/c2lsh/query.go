package c2lsh

import "math"

// State is the phase of a collision-counting query.
type State uint8

const (
	// StateInit means no bucket has been visited yet.
	StateInit State = iota
	// StateExpand means windows are growing round by round.
	StateExpand
	// StateDone means the candidate set is final.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateExpand:
		return "EXPAND"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Query is one run of the radius expansion state machine.
//
// Each Step performs one sweep: every hash function's cursor visits one new
// cell and counts collisions for the points in it. A round at radius R has
// at most R-R' sweeps, R' being the previous radius; then R grows by the
// ratio. A point joins the candidates when its count reaches the threshold.
// The query is done the moment MinSize candidates exist, or once every cursor
// has visited its function's full bucket range.
type Query struct {
	idx       *Index
	minSize   int
	threshold uint32

	state   State
	bids    []int64
	cursors []cursor
	freq    []uint32
	result  []uint32

	radius int64
	prev   int64
	sweep  int64
	rounds int
}

// State returns the current phase.
func (q *Query) State() State { return q.state }

// Radius returns the window size of the current round.
func (q *Query) Radius() int64 { return q.radius }

// Rounds returns the number of rounds started.
func (q *Query) Rounds() int { return q.rounds }

// Candidates returns the points admitted so far, in admission order.
func (q *Query) Candidates() []uint32 { return q.result }

// Count returns the collision count of id so far.
func (q *Query) Count(id uint32) uint32 { return q.freq[id] }

// Step advances the machine by one sweep and returns the new state.
func (q *Query) Step() State {
	switch q.state {
	case StateDone:
		return StateDone
	case StateInit:
		q.cursors = make([]cursor, len(q.bids))
		for i, bid := range q.bids {
			q.cursors[i] = newCursor(bid, q.idx.lo[i], q.idx.hi[i])
		}
		q.radius, q.prev, q.sweep, q.rounds = 1, 0, 0, 1
		q.state = StateExpand
	case StateExpand:
		if q.sweep >= q.radius-q.prev {
			if q.radius > math.MaxInt64/q.idx.opts.Ratio {
				q.state = StateDone
				return q.state
			}
			q.prev = q.radius
			q.radius *= q.idx.opts.Ratio
			q.sweep = 0
			q.rounds++
			for i := range q.cursors {
				q.cursors[i].widen(q.radius)
			}
		}
	}

	visited := false
	for i := range q.cursors {
		cell, ok := q.cursors[i].next()
		if !ok {
			continue
		}
		visited = true
		for _, id := range q.idx.tables[i][cell] {
			q.freq[id]++
			if q.freq[id] != q.threshold {
				continue
			}
			q.result = append(q.result, id)
			if len(q.result) >= q.minSize {
				q.state = StateDone
				return q.state
			}
		}
	}
	q.sweep++
	if !visited {
		// Every window is used up; the rest of the round has nothing to visit.
		q.sweep = q.radius - q.prev
	}

	if q.exhausted() {
		q.state = StateDone
	}
	return q.state
}

// Run steps until done and returns the candidates.
func (q *Query) Run() []uint32 {
	for q.Step() != StateDone {
	}
	return q.result
}

func (q *Query) exhausted() bool {
	for i := range q.cursors {
		if !q.cursors[i].exhausted() {
			return false
		}
	}
	return true
}
