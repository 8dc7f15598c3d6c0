package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrMalformedBasicAuth = errors.New("malformed basic auth header")

// ParseBasic decodes the payload of an "Authorization: Basic ..." header into
// a username and password. The password may contain colons; only the first
// colon splits the pair.
func ParseBasic(header string) (username, password string, err error) {
	const prefix = "Basic "

	if !strings.HasPrefix(header, prefix) {
		return "", "", ErrMalformedBasicAuth
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(header, prefix)))

	if err != nil {
		return "", "", ErrMalformedBasicAuth
	}

	username, password, ok := strings.Cut(string(raw), ":")

	if !ok || username == "" {
		return "", "", ErrMalformedBasicAuth
	}

	return username, password, nil
}
