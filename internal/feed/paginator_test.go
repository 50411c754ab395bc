package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 3, ParsePage("3"))
	assert.Equal(t, -2, ParsePage("-2"))
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		size      int
		requested int
		number    int
		numPages  int
		offset    int
	}{
		{"empty feed has one page", 0, 10, 1, 1, 1, 0},
		{"empty feed clamps high page", 0, 10, 7, 1, 1, 0},
		{"first page", 25, 10, 1, 1, 3, 0},
		{"middle page", 25, 10, 2, 2, 3, 10},
		{"last partial page", 25, 10, 3, 3, 3, 20},
		{"beyond last page clamps to last", 25, 10, 99, 3, 3, 20},
		{"zero clamps to first", 25, 10, 0, 1, 3, 0},
		{"negative clamps to first", 25, 10, -4, 1, 3, 0},
		{"exact multiple", 4, 2, 2, 2, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, numPages, offset := Window(tt.count, tt.size, tt.requested)
			assert.Equal(t, tt.number, number)
			assert.Equal(t, tt.numPages, numPages)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestPageNavigation(t *testing.T) {
	p := &Page{Number: 2, NumPages: 3}
	assert.True(t, p.HasPrevious())
	assert.True(t, p.HasNext())
	assert.Equal(t, 1, p.PreviousNumber())
	assert.Equal(t, 3, p.NextNumber())
	assert.Equal(t, []int{1, 2, 3}, p.PageRange())

	single := &Page{Number: 1, NumPages: 1}
	assert.False(t, single.HasOtherPages())
}
