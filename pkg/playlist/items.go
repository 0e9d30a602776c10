package playlist

import (
	"context"
)

// PageFetcher returns a page of items and the token of the next page, empty on the last page
type PageFetcher func(ctx context.Context, pageToken string) (items []Item, nextPageToken string, err error)

// ItemIterator walks a paginated playlist listing, one page at a time
type ItemIterator struct {
	fetch PageFetcher

	page      []Item
	index     int
	pageToken string
	done      bool

	current Item
	err     error
}

func NewItemIterator(fetch PageFetcher) *ItemIterator {
	return &ItemIterator{
		fetch: fetch,
		index: -1,
	}
}

// Next advances to the next item, fetching the next page if needed
func (it *ItemIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for {
		if it.index+1 < len(it.page) {
			it.index++
			it.current = it.page[it.index]
			return true
		}

		if it.done {
			return false
		}

		page, next, err := it.fetch(ctx, it.pageToken)
		if err != nil {
			it.err = err
			return false
		}

		it.page = page
		it.index = -1
		it.pageToken = next
		if next == "" {
			it.done = true
		}
	}
}

// Item returns the current item
func (it *ItemIterator) Item() Item {
	return it.current
}

// Err returns the error that stopped the iteration, if any
func (it *ItemIterator) Err() error {
	return it.err
}
