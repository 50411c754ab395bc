package feed

import (
	"strconv"

	"yatube/internal/models"
)

// Page is one window of a feed.
type Page struct {
	Posts    []models.Post `json:"posts"`
	Number   int           `json:"number"`
	NumPages int           `json:"num_pages"`
	Count    int64         `json:"count"`
	PerPage  int           `json:"per_page"`
}

func (p *Page) HasPrevious() bool { return p.Number > 1 }
func (p *Page) HasNext() bool     { return p.Number < p.NumPages }
func (p *Page) HasOtherPages() bool {
	return p.HasPrevious() || p.HasNext()
}
func (p *Page) PreviousNumber() int { return p.Number - 1 }
func (p *Page) NextNumber() int     { return p.Number + 1 }

// PageRange lists every page number, for the paginator links.
func (p *Page) PageRange() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}

// ParsePage reads the ?page= value. Anything that is not an integer means page 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}

// Window clamps the requested page into [1, numPages] and returns the slice
// offset for it. An empty feed still has one (empty) page.
func Window(count int64, size, requested int) (number, numPages, offset int) {
	numPages = int((count + int64(size) - 1) / int64(size))
	if numPages < 1 {
		numPages = 1
	}

	number = requested
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	return number, numPages, (number - 1) * size
}
