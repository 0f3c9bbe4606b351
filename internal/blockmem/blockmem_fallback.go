//go:build !unix && !windows

package blockmem

func mapAnon(size int) ([]byte, func() error, error) {
	return GoHeap{}.Map(size)
}
