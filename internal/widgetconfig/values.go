package widgetconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Uint accepts a JSON number, a decimal string or a 0x-prefixed hex string.
// Chain ids arrive in all three shapes.
type Uint uint64

func (u *Uint) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseUint(s)
		if err != nil {
			return err
		}
		*u = Uint(v)
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("widgetconfig: %s is not an unsigned integer", b)
	}
	*u = Uint(v)
	return nil
}

// ParseUint parses "534352" or "0x82750".
func ParseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if h, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseUint(h, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("widgetconfig: bad hex %q", s)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("widgetconfig: bad number %q", s)
	}
	return v, nil
}

// Int accepts a JSON number or a numeric string.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("widgetconfig: %s is not an integer", b)
	}
	*i = Int(v)
	return nil
}

// Bool accepts true/false, "true"/"false", "1"/"0", "yes"/"no" and 0/1.
type Bool bool

func (v *Bool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		*v = true
	case "false", "0", "no", "off", "":
		*v = false
	default:
		return fmt.Errorf("widgetconfig: %s is not a boolean", b)
	}
	return nil
}

// StringList accepts an array of strings or one comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = splitList(s)
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TokenSpec is one paymentTokens entry: a bare address, or an object that
// also carries the symbol and decimals so no chain read is needed.
type TokenSpec struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals *Int   `json:"decimals,omitempty"`
}

func (t *TokenSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &t.Address)
	}
	type plain TokenSpec
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = TokenSpec(p)
	return nil
}

// TokenList accepts an array of TokenSpec or a comma-separated address string.
type TokenList []TokenSpec

func (l *TokenList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var out TokenList
		for _, a := range splitList(s) {
			out = append(out, TokenSpec{Address: a})
		}
		*l = out
		return nil
	}
	var out []TokenSpec
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
