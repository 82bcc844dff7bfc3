package catalogs

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// ErrMissingInstitution is returned when no active institution can be
// determined for a request.
var ErrMissingInstitution = errors.New("catalogs: no active institution")

// HeaderInstitution reads the institution id from header, falling back to
// fallback when the header is absent. A zero fallback means no default.
func HeaderInstitution(header string, fallback int64) InstitutionFunc {
	return func(r *http.Request) (int64, error) {
		raw := ""
		if r != nil {
			raw = strings.TrimSpace(r.Header.Get(header))
		}
		if raw == "" {
			if fallback > 0 {
				return fallback, nil
			}
			return 0, ErrMissingInstitution
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, StatusError{Code: http.StatusBadRequest, Err: ErrMissingInstitution}
		}
		return id, nil
	}
}
