package physics

import "sync"

// VecPool recycles scratch vectors of one length.
type VecPool struct {
	pool sync.Pool
	size int
}

func NewVecPool(size int) *VecPool {
	return &VecPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]float64, size)
			},
		},
	}
}

// Get returns a zeroed vector.
func (p *VecPool) Get() []float64 {
	return p.pool.Get().([]float64)
}

func (p *VecPool) Put(v []float64) {
	if len(v) == p.size {
		for i := range v {
			v[i] = 0
		}
		p.pool.Put(v)
	}
}
