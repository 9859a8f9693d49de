// Package secrets resolves the API credential from a TOML secrets file
// and, failing that, from the process environment.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// KeyName is the credential looked up in both sources.
const KeyName = "OPENAI_API_KEY"

// ErrNotFound means neither source provided a non-empty value.
var ErrNotFound = errors.New("no OpenAI API key found: set OPENAI_API_KEY as a secret or environment variable")

// Source names reported by Resolve.
const (
	SourceFile = "secrets file"
	SourceEnv  = "environment"
)

// Resolver looks up Key in File, then in the environment.
type Resolver struct {
	File string
	Key  string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// NewResolver returns a resolver for KeyName backed by the given file.
func NewResolver(file string) *Resolver {
	return &Resolver{File: file, Key: KeyName, Getenv: os.Getenv}
}

// Resolve returns the credential and the source it came from. A missing
// secrets file is not an error; an unreadable or malformed one is.
func (r *Resolver) Resolve() (value, source string, err error) {
	key := r.Key
	if key == "" {
		key = KeyName
	}
	if r.File != "" {
		v, err := lookupFile(r.File, key)
		if err != nil {
			return "", "", err
		}
		if v != "" {
			return v, SourceFile, nil
		}
	}
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v, SourceEnv, nil
	}
	return "", "", ErrNotFound
}

func lookupFile(path, key string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(b, &m); err != nil {
		return "", fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	switch v := m[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("secrets file %s: %s must be a string, got %T", path, key, v)
	}
}
