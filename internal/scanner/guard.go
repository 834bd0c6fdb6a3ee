package scanner

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Guard runs fn and converts a panic into an error.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return fn()
}

// Each calls fn for every element of the selection until ctx is done. A candidate whose
// analysis panics is skipped and counted.
func Each(ctx context.Context, sel *goquery.Selection, fn func(i int, s *goquery.Selection)) (skipped int) {
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := Guard(func() error { fn(i, s); return nil }); err != nil {
			skipped++
		}
		return true
	})
	return skipped
}
