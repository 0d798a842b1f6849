package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ConnInfo is the parsed shape of a database connection string.
type ConnInfo struct {
	Scheme   string
	Database string
}

var dbSchemes = map[string]bool{
	"mongodb":     true,
	"mongodb+srv": true,
	"postgres":    true,
	"postgresql":  true,
	"mysql":       true,
}

// ParseConnString checks scheme, embedded credentials and database name.
// Violations are ConfigurationError so db targets get rejected at create
// time, before any probe runs.
func ParseConnString(raw string) (*ConnInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid connection string: %v", ErrConfiguration, err)
	}
	if !dbSchemes[u.Scheme] {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrConfiguration, u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%w: connection string has no credentials", ErrConfiguration)
	}
	if _, set := u.User.Password(); !set {
		return nil, fmt.Errorf("%w: connection string has no password", ErrConfiguration)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return nil, fmt.Errorf("%w: connection string names no database", ErrConfiguration)
	}
	return &ConnInfo{Scheme: u.Scheme, Database: db}, nil
}
