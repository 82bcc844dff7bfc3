package dependent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/visibility"
)

// Rule shows a section of fields while Predicate holds for the driver.
type Rule struct {
	Name      string
	Driver    form.Pattern
	Targets   []form.Pattern
	Predicate visibility.Predicate
	// KeepOnHide leaves target values in place when the section is hidden.
	// By default hiding clears every target.
	KeepOnHide bool
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("dependent: rule name is required")
	}
	if strings.TrimSpace(string(r.Driver)) == "" {
		return fmt.Errorf("dependent: rule %s: driver is required", r.Name)
	}
	if len(r.Targets) == 0 {
		return fmt.Errorf("dependent: rule %s: at least one target is required", r.Name)
	}
	if r.Predicate == nil {
		return fmt.Errorf("dependent: rule %s: predicate is required", r.Name)
	}
	return nil
}
