package core

// Totals holds summed amounts for one time window, partitioned by type.
type Totals struct {
	Income  float64
	Expense float64
}

// Net returns income minus expense, signed.
func (t Totals) Net() float64 {
	return t.Income - t.Expense
}

// Breakdown holds per-category sums for one time window. Income and
// expense are independent mappings: a category name appearing in both is
// never merged. Categories with no matching entries are absent, not zero.
type Breakdown struct {
	Income  map[string]float64
	Expense map[string]float64
}

// NewBreakdown returns a Breakdown with both maps allocated.
func NewBreakdown() Breakdown {
	return Breakdown{
		Income:  make(map[string]float64),
		Expense: make(map[string]float64),
	}
}

// Empty reports whether no category matched the window at all.
func (b Breakdown) Empty() bool {
	return len(b.Income) == 0 && len(b.Expense) == 0
}

// Totals collapses the breakdown into per-type sums.
func (b Breakdown) Totals() Totals {
	var t Totals
	for _, v := range b.Income {
		t.Income += v
	}
	for _, v := range b.Expense {
		t.Expense += v
	}
	return t
}
