// Package recovery genera backup codes de 2FA.
package recovery

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alfabeto de 36 símbolos: dígitos + mayúsculas. Sin ambigüedad de case
// porque Normalize sube todo a mayúsculas antes de hashear/verificar.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	// CodeLen es el largo del code sin formato.
	CodeLen = 8

	// SetSize es el tamaño del set completo de un usuario.
	SetSize = 16
)

// NewCode genera un code de 8 símbolos con rejection sampling: los bytes
// >= 252 se descartan para no sesgar el módulo 36 (252 = 7*36).
func NewCode() (string, error) {
	out := make([]byte, 0, CodeLen)
	buf := make([]byte, 16)
	for len(out) < CodeLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == CodeLen {
				break
			}
		}
	}
	return string(out), nil
}

// NewSet genera un set completo de codes (sin formato).
func NewSet() ([]string, error) {
	codes := make([]string, SetSize)
	for i := range codes {
		c, err := NewCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

// Format devuelve la forma de display XXXX-XXXX. Solo presentación:
// se guarda y verifica la forma cruda normalizada.
func Format(code string) string {
	if len(code) != CodeLen {
		return code
	}
	return fmt.Sprintf("%s-%s", code[:4], code[4:])
}

// Normalize lleva el input del usuario a la forma canónica: sin
// separadores ni espacios, en mayúsculas.
func Normalize(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
