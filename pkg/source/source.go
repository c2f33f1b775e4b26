// Package source describes the remote catalogue offers are imported from.
package source

import (
	"context"
	"errors"

	"github.com/cultuurnet/offerbench/pkg/offer"
)

// ErrFetchFailed is returned when a listing page or a document cannot be
// fetched or parsed.
var ErrFetchFailed = errors.New("source fetch failed")

// Source is a paginated catalogue of offers. FetchPage returns member
// references only; each must be dereferenced with FetchOne.
type Source interface {
	FetchPage(ctx context.Context, t offer.Type, start, limit int) ([]string, error)
	FetchOne(ctx context.Context, ref string) (map[string]any, error)
}
