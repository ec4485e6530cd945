// Package receipt posts purchase receipts to the mail endpoints. Sends are
// fire-and-forget: a failed receipt never fails the purchase.
package receipt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

type Kind string

const (
	Listing    Kind = "listing"
	Governance Kind = "governance"
	Rent       Kind = "rent"
	Escrow     Kind = "escrow"
	Payment    Kind = "payment"
)

// DefaultEndpoints maps each kind to its mail script.
func DefaultEndpoints() map[Kind]string {
	return map[Kind]string{
		Listing:    constants.ListingMailURL,
		Governance: constants.GovernanceMailURL,
		Rent:       constants.RentMailURL,
		Escrow:     constants.EscrowMailURL,
		Payment:    constants.PaymentMailURL,
	}
}

type Sender struct {
	client    *http.Client
	endpoints map[Kind]string
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewSender copies endpoints. A nil client gets a 15s timeout client.
func NewSender(endpoints map[Kind]string, client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	eps := make(map[Kind]string, len(endpoints))
	for k, v := range endpoints {
		eps[k] = v
	}
	return &Sender{client: client, endpoints: eps, timeout: 15 * time.Second}
}

// Send posts in the background. Errors are logged.
func (s *Sender) Send(kind Kind, fields url.Values) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.SendSync(ctx, kind, fields); err != nil {
			log.Warn("receipt send failed", "kind", string(kind), "error", err)
			return
		}
		log.Info("receipt sent", "kind", string(kind), "to", fields.Get("to_email"))
	}()
}

// SendSync posts the form and waits for the response.
func (s *Sender) SendSync(ctx context.Context, kind Kind, fields url.Values) error {
	endpoint, ok := s.endpoints[kind]
	if !ok || strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("receipt: no endpoint for %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(fields.Encode()))
	if err != nil {
		return fmt.Errorf("receipt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("receipt: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("receipt: endpoint returned %s", resp.Status)
	}
	return nil
}

// Wait blocks until background sends finish.
func (s *Sender) Wait() { s.wg.Wait() }

// ListingReceipt is a primary or secondary SQMU purchase.
type ListingReceipt struct {
	Email      string
	TxLink     string
	USD        string
	Token      string
	Chain      string
	Property   string
	SQMUAmount string
	Agent      string
}

func (r ListingReceipt) Fields() url.Values {
	v := url.Values{}
	v.Set("to_email", r.Email)
	v.Set("tx_link", r.TxLink)
	v.Set("usd", r.USD)
	v.Set("token", r.Token)
	v.Set("chain", r.Chain)
	v.Set("prop", r.Property)
	v.Set("sqmu_amt", r.SQMUAmount)
	v.Set("agent", r.Agent)
	return v
}

// TxLink builds an explorer link for hash.
func TxLink(explorer, hash string) string {
	explorer = strings.TrimRight(strings.TrimSpace(explorer), "/")
	if explorer == "" {
		explorer = constants.DefaultExplorerURL
	}
	return explorer + "/tx/" + hash
}
