package wallet

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sqmu-io/sqmu-dapp/internal/apperr"
)

const deepLinkBase = "https://metamask.app.link/dapp/"

// DeepLink opens dappURL inside the MetaMask mobile browser. The link takes
// host and path only.
func DeepLink(dappURL string) string {
	raw := strings.TrimSpace(dappURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	target := u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return deepLinkBase + target
}

// UnavailableError is returned by Connect when there is no wallet. DeepLink
// is set when a dapp URL is configured.
type UnavailableError struct {
	DeepLink string
	Cause    error
}

func (e *UnavailableError) Error() string {
	msg := "no wallet provider found"
	if e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.DeepLink != "" {
		return fmt.Sprintf("%s; open %s on mobile", msg, e.DeepLink)
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool { return target == apperr.ErrProviderUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }
