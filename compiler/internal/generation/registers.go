package generation

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fixed registers. r0 always reads zero and never enters the pool.
const (
	Zero   = "r0"
	Helper = "r1" // argument and result of the runtime helpers
	Link   = "r15"

	firstScratch = 2
	lastScratch  = 13
)

// registerPool is a LIFO free list of scratch registers.
type registerPool struct {
	free []string
}

// newRegisterPool fills the pool so that r2 is handed out first.
func newRegisterPool() *registerPool {
	pool := &registerPool{}
	for i := lastScratch; i >= firstScratch; i-- {
		pool.free = append(pool.free, fmt.Sprintf("r%d", i))
	}
	return pool
}

func (p *registerPool) get() (string, error) {
	n := len(p.free)
	if n == 0 {
		return Zero, errors.New("generation: register pool exhausted")
	}
	r := p.free[n-1]
	p.free = p.free[:n-1]
	return r, nil
}

func (p *registerPool) put(r string) {
	p.free = append(p.free, r)
}

func (p *registerPool) size() int {
	return len(p.free)
}

func (p *registerPool) snapshot() []string {
	return append([]string{}, p.free...)
}

// same reports whether the pool holds exactly the registers of snapshot, in the same order.
func (p *registerPool) same(snapshot []string) bool {
	if len(snapshot) != len(p.free) {
		return false
	}
	for i := range snapshot {
		if snapshot[i] != p.free[i] {
			return false
		}
	}
	return true
}
