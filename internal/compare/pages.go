package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
)

// PageFetcher retrieves the collection page behind a next link.
type PageFetcher interface {
	FetchPage(ctx context.Context, link string) (jsondoc.Value, error)
}

// ErrNoFetcher is returned when a page has a next link but the list was
// built without a PageFetcher.
var ErrNoFetcher = errors.New("next link present but no page fetcher configured")

// Pages is an EntityList over a paged collection response. Iteration
// follows @iot.nextLink until a page without one.
type Pages struct {
	ctx     context.Context
	first   jsondoc.Object
	fetcher PageFetcher
}

// NewPages wraps the first page of a collection response. fetcher may be nil
// when the response is known to fit on one page.
func NewPages(ctx context.Context, first jsondoc.Value, fetcher PageFetcher) (*Pages, error) {
	obj, err := page(first)
	if err != nil {
		return nil, err
	}
	return &Pages{ctx: ctx, first: obj, fetcher: fetcher}, nil
}

func page(v jsondoc.Value) (jsondoc.Object, error) {
	obj, ok := jsondoc.AsObject(v)
	if !ok {
		return nil, fmt.Errorf("collection page is %s, not an object", jsondoc.KindOf(v))
	}
	if _, ok := obj.Array(model.KeyValue); !ok {
		return nil, fmt.Errorf("collection page has no %q array", model.KeyValue)
	}
	if raw, ok := obj.Get(model.KeyCount); ok {
		if _, isInt := obj.Int(model.KeyCount); !isInt {
			return nil, fmt.Errorf("%s is %s %s, not an integer", model.KeyCount, jsondoc.KindOf(raw), literal(raw))
		}
	}
	return obj, nil
}

func literal(v jsondoc.Value) string {
	if n, ok := v.(jsondoc.Number); ok {
		return string(n)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}

// Count returns the @iot.count of the first page, or oracle.Unknown when it
// is absent. NewPages rejects a count that is not an integer.
func (p *Pages) Count() int {
	if n, ok := p.first.Int(model.KeyCount); ok {
		return int(n)
	}
	return oracle.Unknown
}

// All implements EntityList.
func (p *Pages) All() iter.Seq2[model.ID, error] {
	return func(yield func(model.ID, error) bool) {
		current := p.first
		seen := make(map[string]bool)
		for {
			members, _ := current.Array(model.KeyValue)
			for i, m := range members {
				obj, ok := jsondoc.AsObject(m)
				if !ok {
					yield("", fmt.Errorf("member %d is %s, not an object", i, jsondoc.KindOf(m)))
					return
				}
				id, ok := model.IDOf(obj)
				if !ok {
					yield("", fmt.Errorf("member %d has no %s", i, model.KeyID))
					return
				}
				if !yield(id, nil) {
					return
				}
			}

			link, ok := current.Text(model.KeyNextLink)
			if !ok {
				return
			}
			if p.fetcher == nil {
				yield("", ErrNoFetcher)
				return
			}
			if seen[link] {
				yield("", fmt.Errorf("next link loop at %s", link))
				return
			}
			seen[link] = true

			if err := p.ctx.Err(); err != nil {
				yield("", err)
				return
			}
			next, err := p.fetcher.FetchPage(p.ctx, link)
			if err != nil {
				yield("", fmt.Errorf("fetch %s: %w", link, err))
				return
			}
			if current, err = page(next); err != nil {
				yield("", fmt.Errorf("fetch %s: %w", link, err))
				return
			}
		}
	}
}
