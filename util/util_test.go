package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPFSToGateway(t *testing.T) {
	a := assert.New(t)

	a.Equal("https://ipfs.io/ipfs/QmHash/1.png", IPFSToGateway("ipfs://QmHash/1.png"))
	a.Equal("https://ipfs.io/ipfs/QmHash/1.png", IPFSToGateway("ipfs://ipfs/QmHash/1.png"))
	a.Equal("https://example.com/a.png", IPFSToGateway("https://example.com/a.png"))
	a.Equal("", IPFSToGateway(""))
}

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 }, true)
	assert.Equal(t, []int{2, 4}, even)

	none := Filter([]int{1, 3}, func(i int) bool { return i%2 == 0 }, true)
	assert.Empty(t, none)
}

func TestFindFirst(t *testing.T) {
	got, ok := FindFirst([]string{"a", "bb", "ccc"}, func(s string) bool { return len(s) == 2 })
	assert.True(t, ok)
	assert.Equal(t, "bb", got)

	_, ok = FindFirst([]string{"a"}, func(s string) bool { return len(s) == 2 })
	assert.False(t, ok)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty("", ""))
}

func TestPointers(t *testing.T) {
	p := ToPointer(7)
	assert.Equal(t, 7, *p)
	assert.Equal(t, 7, FromPointer(p))

	var nilP *int
	assert.Equal(t, 0, FromPointer(nilP))
}
