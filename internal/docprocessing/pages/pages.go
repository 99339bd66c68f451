// Package pages parses page selection expressions such as "1,3-5".
package pages

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
)

// MaxPage is the largest page number a selection may name.
const MaxPage = 10000

// Parse converts a comma separated list of page numbers and inclusive
// ranges into sorted, distinct 1-based page numbers. An empty expression,
// or one made only of blank tokens, yields nil meaning every page. Page
// numbers above MaxPage are rejected.
func Parse(selection string) ([]int, error) {
	if strings.TrimSpace(selection) == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(selection, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if start, end, ok := strings.Cut(token, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(start))
			hi, err2 := strconv.Atoi(strings.TrimSpace(end))
			if err1 != nil || err2 != nil || lo <= 0 || hi <= 0 || hi < lo {
				return nil, fmt.Errorf("%w: invalid range %q", domain.ErrInvalidPageSelection, token)
			}
			if hi > MaxPage {
				return nil, fmt.Errorf("%w: page numbers must not exceed %d", domain.ErrInvalidPageSelection, MaxPage)
			}
			for p := lo; p <= hi; p++ {
				seen[p] = struct{}{}
			}
			continue
		}

		p, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid page number %q", domain.ErrInvalidPageSelection, token)
		}
		if p <= 0 {
			return nil, fmt.Errorf("%w: page numbers must be greater than zero", domain.ErrInvalidPageSelection)
		}
		if p > MaxPage {
			return nil, fmt.Errorf("%w: page numbers must not exceed %d", domain.ErrInvalidPageSelection, MaxPage)
		}
		seen[p] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

// Resolve intersects selected 1-based pages with a document of total pages
// and returns 0-based indices in ascending order. A nil selection means
// every page.
func Resolve(selected []int, total int) ([]int, error) {
	var idx []int
	if selected == nil {
		idx = make([]int, 0, total)
		for i := 0; i < total; i++ {
			idx = append(idx, i)
		}
	} else {
		for _, p := range selected {
			if p >= 1 && p <= total {
				idx = append(idx, p-1)
			}
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: document has %d pages", domain.ErrNoValidPages, total)
	}
	return idx, nil
}
