package export

import (
	"sort"
	"strconv"
	"strings"
)

const keySep = "\x1f"

// Observation feeds one data point into a pivot.
type Observation struct {
	Index  []string
	Column Header
	Value  string
}

// CountPivotOptions shapes a count cross-tabulation.
type CountPivotOptions struct {
	IndexNames []string
	SortLevel  int
	Show       []int
}

// CountPivot counts observations per index/column pair and appends a MarginLabel column
// holding row totals and a MarginLabel row holding column totals. Missing pairs count 0.
func CountPivot(obs []Observation, opts CountPivotOptions) Table {
	if len(obs) == 0 {
		return NewTable(opts.IndexNames...)
	}

	rows, rowKeys := uniqueIndexes(obs)
	headers, colKeys := uniqueHeaders(obs)
	counts := make(map[string]map[string]int, len(rows))
	for _, o := range obs {
		rk := strings.Join(o.Index, keySep)
		if counts[rk] == nil {
			counts[rk] = map[string]int{}
		}
		counts[rk][strings.Join(o.Column, keySep)]++
	}

	withMargin := append(append([]Header{}, headers...), Header{MarginLabel})
	order, labels := CollapseHeaders(withMargin, opts.SortLevel, opts.Show, true)

	table := NewTable(append(append([]string{}, opts.IndexNames...), labels...)...)
	colTotals := make([]int, len(order))
	for i, idx := range rows {
		rk := rowKeys[i]
		cells := append([]string{}, idx...)
		rowTotal := 0
		for pos, hIdx := range order[:len(order)-1] {
			n := counts[rk][colKeys[hIdx]]
			rowTotal += n
			colTotals[pos] += n
			cells = append(cells, strconv.Itoa(n))
		}
		colTotals[len(order)-1] += rowTotal
		cells = append(cells, strconv.Itoa(rowTotal))
		table.Append(cells...)
	}

	margin := make([]string, len(opts.IndexNames))
	if len(margin) > 0 {
		margin[0] = MarginLabel
	}
	for _, n := range colTotals {
		margin = append(margin, strconv.Itoa(n))
	}
	table.Append(margin...)
	return table
}

// GridOptions shapes a wide value pivot.
type GridOptions struct {
	IndexNames []string
	// SortBy lists index levels applied, in order, after the lexical index ordering.
	SortBy []int
	// Roster lists index tuples that get a row even without observations.
	Roster    [][]string
	Missing   string
	Separator string
}

// GridPivot spreads observation values into one column per distinct header, sorted ascending.
// Several values landing in the same cell are joined with Separator in observation order.
// Without observations the result has no rows, whatever the roster holds.
func GridPivot(obs []Observation, opts GridOptions) Table {
	if len(obs) == 0 {
		return NewTable(opts.IndexNames...)
	}

	indexed := make([]Observation, 0, len(obs)+len(opts.Roster))
	indexed = append(indexed, obs...)
	for _, idx := range opts.Roster {
		indexed = append(indexed, Observation{Index: idx})
	}
	rows, rowKeys := uniqueIndexes(indexed)
	headers, colKeys := uniqueHeaders(obs)
	order, labels := CollapseHeaders(headers, 0, []int{0}, false)

	cells := make(map[string]map[string][]string, len(rows))
	for _, o := range obs {
		rk := strings.Join(o.Index, keySep)
		if cells[rk] == nil {
			cells[rk] = map[string][]string{}
		}
		ck := strings.Join(o.Column, keySep)
		cells[rk][ck] = append(cells[rk][ck], o.Value)
	}

	positions := make([]int, len(rows))
	for i := range positions {
		positions[i] = i
	}
	sort.SliceStable(positions, func(a, b int) bool {
		ra, rb := rows[positions[a]], rows[positions[b]]
		for _, lvl := range opts.SortBy {
			if c := CompareValues(level(ra, lvl), level(rb, lvl)); c != 0 {
				return c < 0
			}
		}
		return false
	})

	table := NewTable(append(append([]string{}, opts.IndexNames...), labels...)...)
	for _, pos := range positions {
		rk := rowKeys[pos]
		out := append([]string{}, rows[pos]...)
		for _, hIdx := range order {
			values, ok := cells[rk][colKeys[hIdx]]
			if !ok {
				out = append(out, opts.Missing)
				continue
			}
			out = append(out, strings.Join(values, opts.Separator))
		}
		table.Append(out...)
	}
	return table
}

// uniqueIndexes returns distinct observation indexes sorted lexically (numeric-aware).
func uniqueIndexes(obs []Observation) ([]Header, []string) {
	seen := map[string]struct{}{}
	var rows []Header
	for _, o := range obs {
		k := strings.Join(o.Index, keySep)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, Header(o.Index))
	}
	sort.SliceStable(rows, func(a, b int) bool { return compareHeaders(rows[a], rows[b]) < 0 })
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = strings.Join(r, keySep)
	}
	return rows, keys
}

func uniqueHeaders(obs []Observation) ([]Header, []string) {
	seen := map[string]struct{}{}
	var headers []Header
	for _, o := range obs {
		k := strings.Join(o.Column, keySep)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		headers = append(headers, o.Column)
	}
	sort.SliceStable(headers, func(a, b int) bool { return compareHeaders(headers[a], headers[b]) < 0 })
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = strings.Join(h, keySep)
	}
	return headers, keys
}
