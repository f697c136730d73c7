package enum

import (
	"context"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// CombinedEnumerator runs several enumerators in order and yields each
// distinct image once, under the provenance it was first seen with.
type CombinedEnumerator struct {
	enumerators []Enumerator
}

func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

func (c *CombinedEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	var seen sync.Map // types.ImageID -> struct{}
	unique := func(content []byte, id types.ImageID, prov types.Provenance) error {
		if _, dup := seen.LoadOrStore(id, struct{}{}); dup {
			return nil
		}
		return callback(content, id, prov)
	}

	for _, e := range c.enumerators {
		if err := e.Enumerate(ctx, unique); err != nil {
			return err
		}
	}
	return nil
}
