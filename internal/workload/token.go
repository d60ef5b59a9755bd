package workload

import (
	"fmt"
	"sync/atomic"

	"github.com/ajitpratap0/reservoir/pkg/pool"
)

// Token is the item held by tracked pools. It counts its hook calls and
// notices when they arrive out of order.
type Token struct {
	ID       int64
	Template string

	active     bool
	out        bool
	acquires   int
	releases   int
	violations int
}

var (
	_ pool.Item        = (*Token)(nil)
	_ pool.Activatable = (*Token)(nil)
)

// OnAcquire implements pool.Item.
func (tk *Token) OnAcquire() {
	if tk.out {
		tk.violations++
	}
	tk.out = true
	tk.acquires++
}

// OnRelease implements pool.Item.
func (tk *Token) OnRelease() {
	if !tk.out {
		tk.violations++
	}
	tk.out = false
	tk.releases++
}

// SetActive implements pool.Activatable.
func (tk *Token) SetActive(active bool) { tk.active = active }

// Active reports the last visibility the pool set.
func (tk *Token) Active() bool { return tk.active }

// Acquires returns how many times OnAcquire ran.
func (tk *Token) Acquires() int { return tk.acquires }

// Releases returns how many times OnRelease ran.
func (tk *Token) Releases() int { return tk.releases }

// Violations counts hook calls that did not alternate.
func (tk *Token) Violations() int { return tk.violations }

func (tk *Token) String() string {
	return fmt.Sprintf("%s#%d", tk.Template, tk.ID)
}

// TokenFactory creates numbered tokens.
type TokenFactory struct {
	next atomic.Int64
}

// Create implements pool.Factory.
func (f *TokenFactory) Create(template string, _ pool.Target) (*Token, error) {
	return &Token{ID: f.next.Add(1), Template: template}, nil
}
