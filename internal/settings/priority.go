package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Priority is a sitemap priority in [0.0, 1.0]. It decodes from a JSON or YAML number
// or numeric string and rejects anything else.
type Priority float64

// ParsePriority validates a priority given as a number or numeric string.
func ParsePriority(v any) (Priority, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, invalid("priority", "must be a number between 0.0 and 1.0")
	}
	if f < 0 || f > 1 {
		return 0, invalid("priority", "%v is outside 0.0 to 1.0", f)
	}
	return Priority(f), nil
}

// ParseBatchSize validates a positive integer limit given as a number or numeric string.
func ParseBatchSize(field string, v any) (int, error) {
	f, err := toFloat(v)
	if err != nil || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, invalid(field, "must be a positive integer")
	}
	return int(f), nil
}

// ParseLinkLimit validates the per-delta link limit. Zero means unlimited.
func ParseLinkLimit(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, invalid("max_links", "must be zero or a positive integer")
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return checkFinite(n)
	case float32:
		return checkFinite(float64(n))
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case Priority:
		return checkFinite(float64(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return checkFinite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		return checkFinite(f)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// Float64 returns the priority as a float64.
func (p Priority) Float64() float64 {
	return float64(p)
}

// UnmarshalJSON accepts a number or a numeric string.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return invalid("priority", "must be a number between 0.0 and 1.0")
	}

	parsed, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalYAML accepts a number or a numeric string.
func (p *Priority) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParsePriority(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
