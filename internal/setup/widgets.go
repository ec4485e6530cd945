package setup

import (
	"fmt"
	"os"
	"strings"

	clientconfig "github.com/sqmu-io/sqmu-dapp/cmd/sqmu-dapp/config"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/hostpage"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
)

// planWidgets reads the injected config and the host page, if configured.
// With no host page the single default widget is planned.
func planWidgets(ws clientconfig.WidgetSettings, net chains.Config, guard *widgetconfig.InitGuard) ([]hostpage.Widget, error) {
	var injected widgetconfig.Injected
	if path := strings.TrimSpace(ws.InjectedConfig); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("setup: injected config: %w", err)
		}
		if injected, err = widgetconfig.ParseInjected(raw); err != nil {
			return nil, fmt.Errorf("setup: injected config %s: %w", path, err)
		}
	}

	var mounts []hostpage.Mount
	if path := strings.TrimSpace(ws.HostPage); path != "" {
		var err error
		if mounts, err = hostpage.ScanFile(path); err != nil {
			return nil, err
		}
	}
	return hostpage.Plan(mounts, injected, net, guard)
}
