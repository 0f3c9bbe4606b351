package gc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test_RandomOperations runs seeded random mutator workloads and checks the
// heap bookkeeping and reachability after every collection.
func Test_RandomOperations(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1234} {
		t.Run("", func(t *testing.T) {
			runRandomOperations(t, seed, Options{})
		})
	}
	t.Run("collect-first", func(t *testing.T) {
		runRandomOperations(t, 99, Options{Policy: PolicyCollectFirst, ReleaseEmptyBlocks: true})
	})
	t.Run("budget", func(t *testing.T) {
		runRandomOperations(t, 5, Options{Policy: PolicyBudget, GrowBudget: 1, SizeClasses: &ConfigFineGrained})
	})
}

func runRandomOperations(t *testing.T, seed int64, opts Options) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	h := newTestHeap(t, opts)

	scope := h.Scope()
	defer scope.Close()
	var all []*node
	rooted := map[*node]bool{}

	for range 5000 {
		switch op := rng.Intn(10); {
		case op < 5 || len(all) == 0:
			size := 1 + rng.Intn(600)
			var kids []Cell
			if len(all) > 0 && rng.Intn(2) == 0 {
				if k := all[rng.Intn(len(all))]; h.IsLive(k) {
					kids = append(kids, k)
				}
			}
			n, err := Alloc(h, size, func(Slot) *node { return &node{kids: kids} })
			require.NoError(t, err)
			n.destroys = new(int)
			all = append(all, n)
			if rng.Intn(4) == 0 {
				scope.Add(n)
				rooted[n] = true
			}
		case op < 8:
			a, b := all[rng.Intn(len(all))], all[rng.Intn(len(all))]
			if h.IsLive(a) && h.IsLive(b) {
				a.kids = append(a.kids, b)
			}
		case op < 9:
			n := all[rng.Intn(len(all))]
			if h.IsLive(n) && !rooted[n] && rng.Intn(4) == 0 {
				// Only free cells nothing live points at.
				if !referenced(h, all, n) {
					require.NoError(t, h.Free(n))
				}
			}
		default:
			h.Collect()
			requireVerified(t, h)
			checkReachability(t, h, all, rooted)
		}
	}

	h.Collect()
	requireVerified(t, h)
	checkReachability(t, h, all, rooted)
	for _, n := range all {
		require.LessOrEqual(t, *n.destroys, 1)
	}
}

// referenced reports whether any live node has target as a child.
func referenced(h *Heap, all []*node, target *node) bool {
	for _, n := range all {
		if !h.IsLive(n) {
			continue
		}
		for _, k := range n.kids {
			if k == Cell(target) {
				return true
			}
		}
	}
	return false
}

// checkReachability recomputes reachability from the rooted set and checks
// it matches liveness exactly.
func checkReachability(t *testing.T, h *Heap, all []*node, rooted map[*node]bool) {
	t.Helper()
	reach := map[*node]bool{}
	var work []*node
	for n := range rooted {
		if h.IsLive(n) {
			reach[n] = true
			work = append(work, n)
		}
	}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, k := range n.kids {
			kn := k.(*node)
			if !reach[kn] && h.IsLive(kn) {
				reach[kn] = true
				work = append(work, kn)
			}
		}
	}
	for _, n := range all {
		require.Equal(t, reach[n], h.IsLive(n))
		if !h.IsLive(n) {
			require.Equal(t, 1, *n.destroys)
		}
	}
}
