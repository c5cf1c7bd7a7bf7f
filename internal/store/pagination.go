package store

// Page contains offset pagination parameters.
type Page struct {
	Number  int // 1-based page number
	PerPage int // items per page (defaults to 20 with a maximum of 100)
}

// Paginated contains one page of data and metadata.
type Paginated[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPage returns a validated page, correcting out-of-range values.
func NewPage(number, perPage int) *Page {
	p := &Page{Number: number, PerPage: perPage}
	p.Validate()
	return p
}

// Validate checks and corrects pagination parameters.
func (p *Page) Validate() {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}

// Limit returns the SQL LIMIT value.
func (p *Page) Limit() int {
	p.Validate()
	return p.PerPage
}

// Offset returns the SQL OFFSET value.
func (p *Page) Offset() int {
	p.Validate()
	return (p.Number - 1) * p.PerPage
}

// NewPaginated assembles a result page from items and the total count.
func NewPaginated[T any](items []T, page *Page, total int) *Paginated[T] {
	if page == nil {
		page = NewPage(1, len(items))
		if page.PerPage == 0 {
			page.PerPage = 20
		}
	}
	return &Paginated[T]{
		Items:   items,
		Page:    page.Number,
		PerPage: page.PerPage,
		Total:   total,
		HasMore: page.Offset()+len(items) < total,
	}
}
