// Package config reads section/key settings from an INI style file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/ini.v1"
)

var (
	ErrNoPath      = errors.New("config: no file path")
	ErrInvalidPort = errors.New("config: port must be a number from 0 to 65535")
)

// Reader is the narrow view the rest of the server uses.
type Reader interface {
	Value(section, key string) (string, bool)
}

type Store struct {
	path string

	mu   sync.RWMutex
	file *ini.File
}

func Load(path string) (*Store, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	store := &Store{path: path}
	if err := store.Reload(); err != nil {
		return nil, err
	}

	return store, nil
}

// FromString builds a store from literal INI data.
func FromString(data string) (*Store, error) {
	file, err := ini.LoadSources(loadOptions, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	return &Store{file: file}, nil
}

var loadOptions = ini.LoadOptions{
	Insensitive:         true,
	IgnoreInlineComment: true,
	AllowBooleanKeys:    true,
}

// Reload parses the file again and swaps the result in only when parsing
// succeeded.
func (s *Store) Reload() error {
	if s.path == "" {
		return ErrNoPath
	}

	file, err := ini.LoadSources(loadOptions, s.path)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.file = file
	s.mu.Unlock()

	return nil
}

func (s *Store) Path() string {
	return s.path
}

// Value implements Reader. Section and key names are case-insensitive.
func (s *Store) Value(section, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return "", false
	}

	sec, err := s.file.GetSection(strings.ToLower(section))
	if err != nil {
		return "", false
	}

	k, err := sec.GetKey(strings.ToLower(key))
	if err != nil {
		return "", false
	}

	return strings.TrimSpace(k.String()), true
}

func String(r Reader, section, key, fallback string) string {
	if v, ok := r.Value(section, key); ok && v != "" {
		return v
	}
	return fallback
}

func Int(r Reader, section, key string, fallback int) int {
	v, ok := r.Value(section, key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Port reads a TCP/UDP port. Values outside 0..65535 are an error rather
// than being truncated.
func Port(r Reader, section, key string, fallback uint16) (uint16, error) {
	v, ok := r.Value(section, key)
	if !ok || v == "" {
		return fallback, nil
	}

	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: [%s] %s = %s", ErrInvalidPort, section, key, v)
	}
	return uint16(n), nil
}

func Bool(r Reader, section, key string, fallback bool) bool {
	v, ok := r.Value(section, key)
	if !ok {
		return fallback
	}

	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func Duration(r Reader, section, key string, fallback time.Duration) time.Duration {
	v, ok := r.Value(section, key)
	if !ok {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
