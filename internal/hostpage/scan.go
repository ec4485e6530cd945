// Package hostpage finds widget mount points in a host HTML page and turns
// each one into a resolved widget configuration.
package hostpage

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/net/html"

	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
)

// Mount is one element carrying data-mmwp-widget.
type Mount struct {
	ID      string
	Variant widgetconfig.Variant
	// Attrs holds the element's data-mmwp-* attributes.
	Attrs map[string]string
}

// Scan walks the document and returns its mounts in document order.
func Scan(r io.Reader) ([]Mount, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("hostpage: parse: %w", err)
	}

	var mounts []Mount
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if m, ok := mountOf(n); ok {
				mounts = append(mounts, m)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return mounts, nil
}

func mountOf(n *html.Node) (Mount, bool) {
	m := Mount{Attrs: map[string]string{}}
	found := false
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case key == constants.WidgetAttribute:
			m.Variant = widgetconfig.Variant(strings.TrimSpace(a.Val))
			found = true
		case key == "id":
			m.ID = strings.TrimSpace(a.Val)
		}
		if strings.HasPrefix(key, widgetconfig.DatasetPrefix) {
			m.Attrs[key] = a.Val
		}
	}
	return m, found
}

// ScanFile is Scan on a file path.
func ScanFile(path string) ([]Mount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hostpage: open %s: %w", path, err)
	}
	defer f.Close()
	return Scan(f)
}

// Widget is a mount with its configuration resolved.
type Widget struct {
	ID     string
	Config widgetconfig.Resolved
}

// Plan resolves every mount against the injected configuration. With no
// mounts it returns a single metamask-dapp widget built from the global
// layer. Mounts naming an unknown widget are skipped; mounts without an id
// get a generated one. Duplicate ids are rejected through guard.
func Plan(mounts []Mount, injected widgetconfig.Injected, net chains.Config, guard *widgetconfig.InitGuard) ([]Widget, error) {
	if guard == nil {
		guard = widgetconfig.NewInitGuard()
	}

	if len(mounts) == 0 {
		cfg, err := widgetconfig.Resolve(widgetconfig.VariantDapp, "", injected.Global, net)
		if err != nil {
			return nil, fmt.Errorf("hostpage: default widget: %w", err)
		}
		id := string(widgetconfig.VariantDapp)
		if err := guard.Claim(id); err != nil {
			return nil, err
		}
		return []Widget{{ID: id, Config: cfg}}, nil
	}

	out := make([]Widget, 0, len(mounts))
	for _, m := range mounts {
		if !m.Variant.Valid() {
			log.Warn("skipping unknown widget", "id", m.ID, "widget", string(m.Variant))
			continue
		}
		dataset, err := widgetconfig.ParseDataset(m.Attrs)
		if err != nil {
			return nil, fmt.Errorf("hostpage: mount %q: %w", m.ID, err)
		}
		merged := widgetconfig.Merge(injected.Global, injected.Mount(m.ID), dataset)
		cfg, err := widgetconfig.Resolve(m.Variant, m.ID, merged, net)
		if err != nil {
			return nil, fmt.Errorf("hostpage: mount %q: %w", m.ID, err)
		}

		id := m.ID
		if id == "" {
			id = string(m.Variant) + "-" + uuid.NewString()[:8]
		}
		if err := guard.Claim(id); err != nil {
			return nil, fmt.Errorf("hostpage: %w", err)
		}
		out = append(out, Widget{ID: id, Config: cfg})
	}
	return out, nil
}
