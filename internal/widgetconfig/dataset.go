package widgetconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

// DatasetPrefix is the attribute prefix of widget settings on a mount point.
const DatasetPrefix = "data-" + constants.DatasetPrefix + "-"

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ParseDataset builds a layer from a mount's attributes. Keys are
// "data-mmwp-chain-id" style and map to "chainId". Empty values are
// skipped, all-digit values are numbers, and the widget attribute itself is
// ignored.
func ParseDataset(attrs map[string]string) (Partial, error) {
	raw := make(map[string]any, len(attrs))
	for name, value := range attrs {
		name = strings.ToLower(strings.TrimSpace(name))
		if !strings.HasPrefix(name, DatasetPrefix) || name == constants.WidgetAttribute {
			continue
		}
		key := camelCase(strings.TrimPrefix(name, DatasetPrefix))
		if key == "" || value == "" {
			continue
		}
		if digitsOnly.MatchString(value) {
			raw[key] = json.Number(value)
		} else {
			raw[key] = value
		}
	}
	if len(raw) == 0 {
		return Partial{}, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return Partial{}, fmt.Errorf("widgetconfig: encode dataset: %w", err)
	}
	var p Partial
	if err := decodeLayer(b, &p); err != nil {
		return Partial{}, fmt.Errorf("widgetconfig: dataset: %w", err)
	}
	return p, nil
}

// camelCase turns "chain-id" into "chainId".
func camelCase(kebab string) string {
	parts := strings.Split(kebab, "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

// Injected is the page-level configuration object.
type Injected struct {
	Global Partial            `json:"global"`
	Mounts map[string]Partial `json:"mounts"`
}

// Mount returns the overrides for id, if any.
func (in Injected) Mount(id string) Partial {
	if id == "" || in.Mounts == nil {
		return Partial{}
	}
	return in.Mounts[id]
}

// ParseInjected accepts {"global": {...}, "mounts": {...}} or a flat object,
// which is then the global layer. Empty input is an empty config.
func ParseInjected(data []byte) (Injected, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Injected{}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Injected{}, fmt.Errorf("widgetconfig: injected config: %w", err)
	}

	_, hasGlobal := probe["global"]
	_, hasMounts := probe["mounts"]
	if !hasGlobal && !hasMounts {
		var g Partial
		if err := decodeLayer(data, &g); err != nil {
			return Injected{}, fmt.Errorf("widgetconfig: injected config: %w", err)
		}
		return Injected{Global: g}, nil
	}

	var in Injected
	if hasGlobal {
		if err := decodeLayer(probe["global"], &in.Global); err != nil {
			return Injected{}, fmt.Errorf("widgetconfig: global: %w", err)
		}
	}
	if hasMounts {
		var mounts map[string]json.RawMessage
		if err := json.Unmarshal(probe["mounts"], &mounts); err != nil {
			return Injected{}, fmt.Errorf("widgetconfig: mounts: %w", err)
		}
		in.Mounts = make(map[string]Partial, len(mounts))
		for id, m := range mounts {
			var p Partial
			if err := decodeLayer(m, &p); err != nil {
				return Injected{}, fmt.Errorf("widgetconfig: mount %q: %w", id, err)
			}
			in.Mounts[id] = p
		}
	}
	return in, nil
}

// decodeLayer unmarshals one layer. Unknown keys are tolerated: host pages
// carry settings for other scripts too.
func decodeLayer(b []byte, p *Partial) error {
	if len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	return json.Unmarshal(b, p)
}
