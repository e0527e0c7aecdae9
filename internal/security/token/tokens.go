// Package token genera tokens opacos y sus hashes para persistencia.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// RawBytes es el tamaño del token crudo. 32 bytes = 256 bits de entropía,
// bastante por encima del mínimo exigido de 122 bits.
const RawBytes = 32

// NewOpaque genera un token opaco aleatorio (base64url sin padding).
func NewOpaque() (string, error) {
	b := make([]byte, RawBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash devuelve sha256(raw) en base64url sin padding, que es la forma
// que se guarda en DB. El token crudo viaja solo por email.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
