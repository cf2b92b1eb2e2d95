package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// ErrNotFound indicates that no usable session has been saved yet. Callers
// must treat it as "log in first", not as a fatal condition.
var ErrNotFound = errors.New("no saved session")

// Token is a single cookie-shaped session credential. Expires is a unix
// timestamp; zero means a session cookie.
type Token struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// Identity is the full set of tokens proving an authenticated session. It is
// the only contract shared between the HTTP login client and the browser.
type Identity struct {
	Tokens []Token
}

// Empty reports whether the identity carries no tokens at all.
func (id Identity) Empty() bool {
	return len(id.Tokens) == 0
}

// Store persists an Identity as a JSON file, one object per cookie keyed by
// cookie name.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the saved identity. An absent, malformed, or empty file yields
// ErrNotFound.
func (s *Store) Load() (Identity, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, fmt.Errorf("%s: %w", s.Path, ErrNotFound)
		}
		return Identity{}, fmt.Errorf("read %s: %w", s.Path, err)
	}

	var entries map[string]Token
	if err := json.Unmarshal(data, &entries); err != nil {
		return Identity{}, fmt.Errorf("%s is not a valid cookie file: %w", s.Path, ErrNotFound)
	}
	if len(entries) == 0 {
		return Identity{}, fmt.Errorf("%s holds no cookies: %w", s.Path, ErrNotFound)
	}

	var id Identity
	for name, tok := range entries {
		if tok.Name == "" {
			tok.Name = name
		}
		id.Tokens = append(id.Tokens, tok)
	}
	// JSON objects are unordered, so fix a stable order on the way in.
	sort.Slice(id.Tokens, func(i, j int) bool {
		return id.Tokens[i].Name < id.Tokens[j].Name
	})
	return id, nil
}

// Save writes the identity, replacing any previous file.
func (s *Store) Save(id Identity) error {
	entries := make(map[string]Token, len(id.Tokens))
	for _, tok := range id.Tokens {
		entries[tok.Name] = tok
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}
