package serializer

import (
	"net/url"
	"strconv"
)

// Envelope is the success wrapper around every payload.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// TaskPage is a page of the task list with links to its neighbours.
type TaskPage struct {
	Count    int      `json:"count"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  Envelope `json:"results"`
}

// NewTaskPage builds a page. self is the absolute URL of the current
// request; page is 1-based.
func NewTaskPage(tasks []Task, total, page, pageSize int, self *url.URL) TaskPage {
	p := TaskPage{
		Count:   total,
		Results: Envelope{Success: true, Data: tasks},
	}
	if page*pageSize < total {
		p.Next = pageLink(self, page+1)
	}
	if page > 1 {
		p.Previous = pageLink(self, page-1)
	}
	return p
}

// pageLink returns self with the page parameter replaced. The first page
// drops the parameter.
func pageLink(self *url.URL, page int) *string {
	if self == nil {
		return nil
	}
	u := *self
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
