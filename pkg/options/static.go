package options

import (
	"context"
	"strings"

	"github.com/goliatone/go-matricula/pkg/form"
)

// Static serves option lists from memory, keyed by the value of one driver
// field. Unknown keys yield an empty list.
type Static struct {
	Field string
	Lists map[string][]form.Option
}

// Fetch returns the list registered for the driver value.
func (s Static) Fetch(ctx context.Context, req Request) ([]form.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.Value(s.Field))
	return form.NormalizeOptions(s.Lists[key]), nil
}
