package grid

// Pager owns the current page index and size. In controlled mode the index
// lives with the host: the pager reads it through get and reports moves
// through onChange.
type Pager struct {
	size     int
	index    int
	get      func() int
	onChange func(int)
}

// NewPager returns a pager that keeps its index itself.
func NewPager(size int) *Pager {
	return &Pager{size: max(size, 1)}
}

// NewControlledPager returns a pager whose index is owned by the host.
func NewControlledPager(size int, get func() int, onChange func(int)) *Pager {
	return &Pager{size: max(size, 1), get: get, onChange: onChange}
}

// Controlled reports whether the host owns the index.
func (p *Pager) Controlled() bool { return p.get != nil }

// Index returns the current page index.
func (p *Pager) Index() int {
	if p.get != nil {
		return p.get()
	}
	return p.index
}

// Size returns the page size.
func (p *Pager) Size() int { return p.size }

// SetIndex moves to page i. Negative indexes become 0; the upper bound is
// applied by Clamp once the filtered count is known.
func (p *Pager) SetIndex(i int) {
	i = max(i, 0)
	if p.get != nil {
		if p.get() != i && p.onChange != nil {
			p.onChange(i)
		}
		return
	}
	p.index = i
}

// SetSize changes the page size and clamps the index for filtered rows.
func (p *Pager) SetSize(n, filtered int) error {
	if n < 1 {
		return ErrInvalidPageSize
	}
	p.size = n
	p.Clamp(filtered)
	return nil
}

// Clamp keeps the index on a valid page for filtered rows and returns it.
func (p *Pager) Clamp(filtered int) int {
	cur := p.Index()
	next := ClampIndex(cur, PageCount(filtered, p.size))
	if next != cur {
		p.SetIndex(next)
	}
	return next
}

// Reset moves back to the first page.
func (p *Pager) Reset() { p.SetIndex(0) }
