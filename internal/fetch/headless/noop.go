package headless

import (
	"context"
	"fmt"

	"github.com/yamelab/medref/internal/fetch"
)

// Noop is the headless fetcher used when rendering is disabled. Promotions
// fail loudly instead of silently returning the probe body.
type Noop struct{}

// Fetch always fails.
func (Noop) Fetch(context.Context, fetch.Request) (fetch.Response, error) {
	return fetch.Response{}, fmt.Errorf("headless rendering is disabled")
}
