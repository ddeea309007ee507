// Package pagination turns a {total, limit} page envelope into page buttons.
package pagination

import (
	"net/url"
	"strconv"
)

type Button struct {
	Page    int
	Label   string
	Current bool
}

type Pager struct {
	Total   int
	Limit   int
	Current int
	Pages   int
	Buttons []Button
}

// New builds exactly ceil(total/limit) buttons numbered from zero.
// A non-positive limit yields no buttons.
func New(total, limit, current int) Pager {
	p := Pager{Total: total, Limit: limit, Current: current}
	if limit <= 0 || total <= 0 {
		return p
	}
	p.Pages = (total + limit - 1) / limit
	p.Buttons = make([]Button, p.Pages)
	for i := range p.Buttons {
		p.Buttons[i] = Button{Page: i, Label: strconv.Itoa(i + 1), Current: i == current}
	}
	return p
}

func (p Pager) HasPrev() bool { return p.Current > 0 }
func (p Pager) HasNext() bool { return p.Current < p.Pages-1 }
func (p Pager) Prev() int     { return p.Current - 1 }
func (p Pager) Next() int     { return p.Current + 1 }

// ParsePage reads the zero-indexed "page" query parameter.
func ParsePage(q url.Values) int {
	n, err := strconv.Atoi(q.Get("page"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
