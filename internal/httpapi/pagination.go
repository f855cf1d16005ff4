package httpapi

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"habitbot/internal/storage"
)

// Page-number pagination. page is 1-based, page_size is clamped to the
// configured maximum.
const (
	DefaultPageSize = 5
	DefaultMaxPage  = 30
)

// maxOffset bounds (page-1)*page_size so the offset fits every driver's
// integer type; pages beyond it are past the end of any list.
const maxOffset = math.MaxInt32

type pageSizes struct{ size, max int }

// pager holds the live page size limits; SetPagination swaps them on reload.
type pager struct {
	cur atomic.Pointer[pageSizes]
}

func newPager(size, max int) *pager {
	p := &pager{}
	p.set(size, max)
	return p
}

func (p *pager) set(size, max int) {
	if max <= 0 {
		max = DefaultMaxPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > max {
		size = max
	}
	p.cur.Store(&pageSizes{size: size, max: max})
}

type pageRequest struct {
	number int
	size   int
}

func (p *pager) parse(r *http.Request) (pageRequest, error) {
	lim := p.cur.Load()
	q := r.URL.Query()
	pr := pageRequest{number: 1, size: lim.size}

	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pr.size = min(n, lim.max)
		}
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n-1 > maxOffset/pr.size {
			return pr, errInvalidPage
		}
		pr.number = n
	}
	return pr, nil
}

func (pr pageRequest) window() storage.Page {
	return storage.Page{Limit: uint64(pr.size), Offset: uint64((pr.number - 1) * pr.size)}
}

type pageBody[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate builds the response body. A page past the end is an error,
// except the first page of an empty list.
func paginate[T any](r *http.Request, pr pageRequest, total int, results []T) (pageBody[T], error) {
	if pr.number > 1 && (pr.number-1)*pr.size >= total {
		return pageBody[T]{}, errInvalidPage
	}
	if results == nil {
		results = []T{}
	}
	body := pageBody[T]{Count: total, Results: results}
	if pr.number*pr.size < total {
		next := pageURL(r, pr.number+1)
		body.Next = &next
	}
	if pr.number > 1 {
		prev := pageURL(r, pr.number-1)
		body.Previous = &prev
	}
	return body, nil
}

// pageURL rebuilds the absolute request URL pointing at page n. Page 1 drops
// the parameter.
func pageURL(r *http.Request, n int) string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "https" || fwd == "http" {
		u.Scheme = fwd
	}
	q := r.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
