package export

import (
	"sort"
	"strconv"
	"strings"
)

// MarginLabel names the aggregate row and column appended to pivots.
const MarginLabel = "Total"

// Header is one leaf column of a multi-level pivot header, outermost level first.
type Header []string

// CollapseHeaders orders headers by sortLevel and renders each one as its show levels joined
// with "/". Ties keep the lexical order of the full header. When margin is set the last header
// is treated as the aggregate column: it stays last and is labelled MarginLabel.
// The returned order holds indices into headers, aligned with labels.
func CollapseHeaders(headers []Header, sortLevel int, show []int, margin bool) (order []int, labels []string) {
	n := len(headers)
	if margin && n > 0 {
		n--
	}
	order = make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareHeaders(headers[order[a]], headers[order[b]]) < 0
	})
	sort.SliceStable(order, func(a, b int) bool {
		return CompareValues(level(headers[order[a]], sortLevel), level(headers[order[b]], sortLevel)) < 0
	})

	labels = make([]string, 0, len(headers))
	for _, idx := range order {
		labels = append(labels, renderHeader(headers[idx], show))
	}
	if margin && len(headers) > 0 {
		order = append(order, len(headers)-1)
		labels = append(labels, MarginLabel)
	}
	return order, labels
}

func renderHeader(h Header, show []int) string {
	parts := make([]string, 0, len(show))
	for _, lvl := range show {
		parts = append(parts, level(h, lvl))
	}
	return strings.Join(parts, "/")
}

func level(h Header, idx int) string {
	if idx < 0 || idx >= len(h) {
		return ""
	}
	return h[idx]
}

func compareHeaders(a, b Header) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// CompareValues orders two cell values, numerically when both are integers.
func CompareValues(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
