package c2lsh

import "math"

// cursor walks one hash function's bucket ids outward from the query bucket.
//
// The window for radius R is [bid-R/2, bid+(R-1)/2]. Windows for R and c*R
// nest, so each round exposes at most cR-R new cells split over both sides.
// Cells outside the function's occupied range [lo, hi] hold no points and are
// skipped. next alternates between the left and right frontier while both
// have room.
type cursor struct {
	bid     int64
	lo, hi  int64
	start   int64
	end     int64
	left    int64
	right   int64
	side    uint64
	started bool
}

func newCursor(bid, lo, hi int64) cursor {
	return cursor{bid: bid, lo: lo, hi: hi, start: bid, end: bid, left: bid, right: bid}
}

// widen sets the window for radius r. left and right keep their position.
func (c *cursor) widen(r int64) {
	if half := r / 2; c.bid < math.MinInt64+half {
		c.start = math.MinInt64
	} else {
		c.start = c.bid - half
	}
	if half := (r - 1) / 2; c.bid > math.MaxInt64-half {
		c.end = math.MaxInt64
	} else {
		c.end = c.bid + half
	}
}

// next returns the next unvisited cell of the window. ok is false when the
// window has no occupied cell left.
func (c *cursor) next() (cell int64, ok bool) {
	if !c.started {
		c.started = true
		return c.bid, true
	}
	leftFirst := c.side%2 == 0
	c.side++
	if leftFirst {
		if cell, ok = c.stepLeft(); ok {
			return cell, true
		}
		return c.stepRight()
	}
	if cell, ok = c.stepRight(); ok {
		return cell, true
	}
	return c.stepLeft()
}

func (c *cursor) stepLeft() (int64, bool) {
	if c.left == math.MinInt64 {
		return 0, false
	}
	cell := min(c.left-1, c.hi)
	if cell < max(c.start, c.lo) {
		return 0, false
	}
	c.left = cell
	return cell, true
}

func (c *cursor) stepRight() (int64, bool) {
	if c.right == math.MaxInt64 {
		return 0, false
	}
	cell := max(c.right+1, c.lo)
	if cell > min(c.end, c.hi) {
		return 0, false
	}
	c.right = cell
	return cell, true
}

// exhausted reports whether every occupied cell has been visited.
func (c *cursor) exhausted() bool {
	return c.started && c.left <= c.lo && c.right >= c.hi
}
