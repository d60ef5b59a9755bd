package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

func trackedFactory(f *testutil.TrackedFactory) Factory[*testutil.TrackedItem] {
	return FactoryFunc[*testutil.TrackedItem](func(template string, _ Target) (*testutil.TrackedItem, error) {
		return f.New(template)
	})
}

func newTestStore(t *testing.T, f *testutil.TrackedFactory, opts ...SettingsOption) *store[*testutil.TrackedItem] {
	t.Helper()
	s := NewSettings(trackedFactory(f), opts...)
	require.NoError(t, s.Validate())
	hooks := newDispatcher("test", s, zaptest.NewLogger(t), nopRecorder{})
	return newStore(s, hooks)
}

func (l *linkedReclaimer[T]) spareLen() int {
	n := 0
	for node := l.spare; node != nil; node = node.next {
		n++
	}
	return n
}

func TestStackReclaimerIsLIFO(t *testing.T) {
	s := newStackReclaimer[int](0)
	for i := 1; i <= 3; i++ {
		s.push(i)
	}
	assert.True(t, s.contains(2))
	assert.False(t, s.contains(4))

	var order []int
	s.drain(func(i int) { order = append(order, i) })
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Equal(t, 0, s.len())

	_, ok := s.pop()
	assert.False(t, ok)
}

func TestLinkedReclaimerReusesNodes(t *testing.T) {
	l := newLinkedReclaimer[int]()
	for i := 1; i <= 3; i++ {
		l.push(i)
	}
	assert.Equal(t, 3, l.len())
	assert.True(t, l.contains(1))

	for want := 3; want >= 1; want-- {
		got, ok := l.pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, l.spareLen())

	l.push(7)
	assert.Equal(t, 2, l.spareLen())
	assert.Equal(t, 1, l.len())

	var drained []int
	l.drain(func(i int) { drained = append(drained, i) })
	assert.Equal(t, []int{7}, drained)
	assert.Equal(t, 0, l.spareLen())
	assert.Equal(t, 0, l.len())
}

func TestRegistrySwapRemove(t *testing.T) {
	r := newRegistry[string]()
	r.add("a")
	r.add("b")
	r.add("c")
	r.add("a")
	require.Equal(t, 3, r.len())

	snap := r.snapshot()
	assert.True(t, r.remove("a"))
	assert.False(t, r.remove("a"))
	assert.Equal(t, []string{"c", "b"}, r.items)
	assert.Equal(t, 0, r.index["c"])
	assert.Equal(t, []string{"a", "b", "c"}, snap)
	assert.False(t, r.contains("a"))
	assert.Equal(t, "b", r.at(1))
}

func TestStoreHardCap(t *testing.T) {
	f := testutil.NewTrackedFactory()
	st := newTestStore(t, f, WithMaxSize(1))

	_, err := st.create()
	require.NoError(t, err)

	_, err = st.create()
	require.Error(t, err)
	assert.True(t, errors.Is(err, reservoirerrors.ErrCapacityExceeded))
	assert.Equal(t, 1, st.total)
	assert.Len(t, f.Created, 1)
}

func TestStoreShedsWhenIdleFull(t *testing.T) {
	f := testutil.NewTrackedFactory()
	st := newTestStore(t, f, WithMaxSize(1))

	a, err := st.create()
	require.NoError(t, err)
	shed, err := st.put(a)
	require.NoError(t, err)
	assert.False(t, shed)

	// create never goes past max, so fake a second live item
	b, err := f.New("test")
	require.NoError(t, err)
	st.total++

	shed, err = st.put(b)
	require.NoError(t, err)
	assert.True(t, shed)
	assert.Equal(t, 1, b.Closed)
	assert.Equal(t, 0, a.Closed)
	assert.Equal(t, 1, st.countIdle())
	assert.Equal(t, 1, st.total)
	assert.Equal(t, int64(1), st.shed)
}

func TestStoreDuplicatePut(t *testing.T) {
	f := testutil.NewTrackedFactory()
	st := newTestStore(t, f, WithCollectionChecks(true), WithDiscipline(LinkedList))

	a, err := st.create()
	require.NoError(t, err)
	_, err = st.put(a)
	require.NoError(t, err)

	_, err = st.put(a)
	assert.True(t, reservoirerrors.IsType(err, reservoirerrors.ErrorTypeDuplicateRelease))
	assert.Equal(t, 1, st.countIdle())
}

func TestStoreClearResetsBookkeeping(t *testing.T) {
	f := testutil.NewTrackedFactory()
	st := newTestStore(t, f, WithMaxSize(3))
	require.NoError(t, st.prewarm(3))
	assert.Equal(t, 3, st.total)

	assert.Equal(t, 3, st.clear())
	assert.Equal(t, 0, st.total)
	assert.Equal(t, 0, st.countIdle())
	for _, item := range f.Created {
		assert.Equal(t, 1, item.Closed)
	}

	// capacity is available again
	_, err := st.create()
	assert.NoError(t, err)
}

func TestDispatcherCreateParksUnderIdleTarget(t *testing.T) {
	f := testutil.NewTrackedFactory()
	idle := NewNode("idle")
	s := NewSettings(trackedFactory(f), WithIdleParent(idle), WithTemplateName("crate"))
	d := newDispatcher("crates", s, zaptest.NewLogger(t), nopRecorder{})

	item, err := d.create()
	require.NoError(t, err)
	assert.True(t, idle.Contains(item))
	assert.False(t, item.Active)
	assert.Equal(t, "crate", item.Template)
	assert.Empty(t, item.Hooks)
}
