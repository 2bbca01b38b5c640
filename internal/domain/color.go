package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Color is a product color variant. Both halves are captured when a line is
// added so display never needs a reverse lookup.
type Color struct {
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

// ParseColor interprets a bare string as either a hex code or a name.
func ParseColor(raw string) *Color {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if hexColor.MatchString(raw) {
		return &Color{Code: strings.ToLower(raw)}
	}
	return &Color{Name: raw}
}

// Identity is the comparable form used in line keys.
func (c *Color) Identity() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return strings.ToLower(name)
	}
	return strings.ToLower(strings.TrimSpace(c.Code))
}

// Matches reports whether raw is the color's name or code.
func (c *Color) Matches(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	return strings.EqualFold(c.Name, raw) || strings.EqualFold(c.Code, raw)
}

// UnmarshalJSON accepts both the object form and the legacy bare string.
func (c *Color) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed := ParseColor(raw)
		if parsed == nil {
			*c = Color{}
			return nil
		}
		*c = *parsed
		return nil
	}
	type plain Color
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Color(p)
	return nil
}
