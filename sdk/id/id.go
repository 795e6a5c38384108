package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// RandomBytes is the number of random bytes in every generated id (256 bits).
const RandomBytes = 32

// Len is the length of a generated id without a prefix.
var Len = base64.RawURLEncoding.EncodedLen(RandomBytes)

// New generates a url safe id with an optional prefix. Ids are suitable for
// use as an oauth state or a session id.
func New(optionalPrefix string) (string, error) {
	b, err := uuid.GenerateRandomBytes(RandomBytes)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
