// Package helpers holds the terminal prompts used to unlock and approve the
// local wallet.
package helpers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var ErrNotTerminal = errors.New("stdin is not a terminal")

// Prompter asks questions on out and reads answers from in. Prompts are
// serialized so two widgets never interleave on one terminal.
type Prompter struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// NewTerminalPrompter uses stdin and stderr.
func NewTerminalPrompter() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stderr,
		fd:     fd,
		isTerm: term.IsTerminal(fd),
	}
}

// NewPrompter reads from in; passphrase prompts read plain lines.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) LineWithDefault(label, def string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}

	line, err := p.readLine()
	if err != nil || line == "" {
		return def
	}
	return line
}

// YesNo asks a y/n question. Anything but an explicit yes is a no.
func (p *Prompter) YesNo(question string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Passphrase reads a secret without echo when attached to a terminal.
func (p *Prompter) Passphrase(prompt string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprint(p.out, prompt)

	var (
		pw  []byte
		err error
	)
	if p.isTerm {
		pw, err = term.ReadPassword(p.fd)
		_, _ = fmt.Fprintln(p.out)
	} else {
		var line string
		line, err = p.readLine()
		pw = []byte(line)
	}
	if err != nil {
		ZeroBytes(pw)
		return nil, fmt.Errorf("passphrase input failed: %w", err)
	}
	if err := ValidatePassphrase(pw); err != nil {
		ZeroBytes(pw)
		return nil, err
	}
	return pw, nil
}

func ValidatePassphrase(pw []byte) error {
	if len(pw) < 8 {
		return fmt.Errorf("passphrase must be at least 8 characters long")
	}
	for _, b := range pw {
		if b < 0x21 || b > 0x7e {
			return fmt.Errorf("passphrase contains invalid characters (use printable ASCII without spaces)")
		}
	}
	return nil
}

// ValidInfuraKey reports whether key looks like an Infura project id.
func ValidInfuraKey(key string) bool {
	return len(key) == 32 && isHexString(key)
}

func isHexString(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
