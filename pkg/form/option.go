package form

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPlaceholder is the label of the empty choice rendered by the admin.
const DefaultPlaceholder = "---------"

// Option is a single (value, label) choice of a select field.
type Option struct {
	Value string `json:"id"`
	Label string `json:"label"`
}

// UnmarshalJSON accepts the payload shapes produced by the enrollment
// endpoints: ids may be numbers or strings and labels may be published as
// label, text or nombre.
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("form: decode option: %w", err)
	}

	value, err := firstScalar(raw, "id", "value", "pk")
	if err != nil {
		return err
	}
	label, err := firstScalar(raw, "label", "text", "nombre", "name")
	if err != nil {
		return err
	}
	if label == "" {
		label = value
	}
	o.Value = value
	o.Label = label
	return nil
}

func firstScalar(raw map[string]json.RawMessage, keys ...string) (string, error) {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok || len(msg) == 0 || string(msg) == "null" {
			continue
		}
		var str string
		if err := json.Unmarshal(msg, &str); err == nil {
			return strings.TrimSpace(str), nil
		}
		var num json.Number
		if err := json.Unmarshal(msg, &num); err == nil {
			return num.String(), nil
		}
		var flag bool
		if err := json.Unmarshal(msg, &flag); err == nil {
			return strconv.FormatBool(flag), nil
		}
		return "", fmt.Errorf("form: option key %q is not a scalar", key)
	}
	return "", nil
}

// NormalizeOptions trims values and labels, drops entries with an empty value
// and removes duplicates keeping the first occurrence.
func NormalizeOptions(opts []Option) []Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]Option, 0, len(opts))
	seen := make(map[string]struct{}, len(opts))
	for _, opt := range opts {
		value := strings.TrimSpace(opt.Value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		label := strings.TrimSpace(opt.Label)
		if label == "" {
			label = value
		}
		out = append(out, Option{Value: value, Label: label})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneOptions(opts []Option) []Option {
	if len(opts) == 0 {
		return nil
	}
	return append([]Option(nil), opts...)
}
