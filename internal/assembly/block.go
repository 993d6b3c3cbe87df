package assembly

import "gonum.org/v1/gonum/mat"

type globalBlock struct {
	m              *mat.Dense
	ro, co, nr, nc int
}

func (b *globalBlock) Valid() bool { return true }

func (b *globalBlock) in(i, j int) bool {
	return i >= 0 && i < b.nr && j >= 0 && j < b.nc
}

func (b *globalBlock) Add(i, j int, v float64) {
	if b.in(i, j) {
		b.m.Set(b.ro+i, b.co+j, b.m.At(b.ro+i, b.co+j)+v)
	}
}

func (b *globalBlock) Set(i, j int, v float64) {
	if b.in(i, j) {
		b.m.Set(b.ro+i, b.co+j, v)
	}
}

// ClearRowCol clears global row ro+i and global column co+i over the whole
// matrix, not just this block.
func (b *globalBlock) ClearRowCol(i int) {
	n, _ := b.m.Dims()
	if i < 0 {
		return
	}
	for k := 0; k < n; k++ {
		if i < b.nr {
			b.m.Set(b.ro+i, k, 0)
		}
		if i < b.nc {
			b.m.Set(k, b.co+i, 0)
		}
	}
}

type localBlock struct {
	m *mat.Dense
}

func (b *localBlock) Valid() bool { return true }

func (b *localBlock) in(i, j int) bool {
	r, c := b.m.Dims()
	return i >= 0 && i < r && j >= 0 && j < c
}

func (b *localBlock) Add(i, j int, v float64) {
	if b.in(i, j) {
		b.m.Set(i, j, b.m.At(i, j)+v)
	}
}

func (b *localBlock) Set(i, j int, v float64) {
	if b.in(i, j) {
		b.m.Set(i, j, v)
	}
}

func (b *localBlock) ClearRowCol(i int) {
	r, c := b.m.Dims()
	if i < r {
		for k := 0; k < c; k++ {
			b.m.Set(i, k, 0)
		}
	}
	if i < c {
		for k := 0; k < r; k++ {
			b.m.Set(k, i, 0)
		}
	}
}

type nullBlock struct{}

func (nullBlock) Valid() bool           { return false }
func (nullBlock) Add(int, int, float64) {}
func (nullBlock) Set(int, int, float64) {}
func (nullBlock) ClearRowCol(int)       {}
