// Package identity derives and persists the stable terminal identifier the
// protocol requires. The identifier survives restarts; it is regenerated
// only by an explicit Reset.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Prefix marks every generated terminal identifier.
const Prefix = "POS-"

type storedIdentity struct {
	TerminalID string `yaml:"terminal_id"`
	CreatedAt  string `yaml:"created_at"`
}

// Resolver loads the persisted terminal identifier, creating one lazily on
// first need.
type Resolver struct {
	path string

	mu     sync.Mutex
	cached string
}

// NewResolver resolves against the given store file path.
func NewResolver(path string) *Resolver {
	return &Resolver{path: path}
}

// TerminalID returns the persisted identifier, generating and persisting a
// fresh one if the store does not exist yet.
func (r *Resolver) TerminalID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached, nil
	}

	data, err := os.ReadFile(r.path)
	if err == nil {
		var s storedIdentity
		if err := yaml.Unmarshal(data, &s); err == nil && s.TerminalID != "" {
			r.cached = s.TerminalID
			return r.cached, nil
		}
		// Corrupt store: fall through and regenerate.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read identity store: %w", err)
	}

	id := generate(time.Now())
	if err := r.persist(id); err != nil {
		return "", err
	}
	r.cached = id
	return id, nil
}

// Reset clears the persisted identifier. The next TerminalID call generates
// a new one.
func (r *Resolver) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cached = ""
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear identity store: %w", err)
	}
	return nil
}

func (r *Resolver) persist(id string) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	data, err := yaml.Marshal(storedIdentity{
		TerminalID: id,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write identity store: %w", err)
	}
	return nil
}

func generate(now time.Time) string {
	return Prefix + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}
