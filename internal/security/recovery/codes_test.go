package recovery

import (
	"strings"
	"testing"
)

func TestNewCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != CodeLen {
			t.Fatalf("len(%q) = %d, esperaba %d", code, len(code), CodeLen)
		}
		for _, r := range code {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("símbolo %q fuera del alfabeto en %q", r, code)
			}
		}
		seen[code] = true
	}
	// 200 códigos de 36^8: una colisión acá es un bug, no mala suerte
	if len(seen) != 200 {
		t.Fatalf("códigos repetidos: %d únicos de 200", len(seen))
	}
}

func TestNewSet(t *testing.T) {
	set, err := NewSet()
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if len(set) != SetSize {
		t.Fatalf("len(set) = %d, esperaba %d", len(set), SetSize)
	}
	unique := map[string]bool{}
	for _, c := range set {
		unique[c] = true
	}
	if len(unique) != SetSize {
		t.Fatal("el set no debe tener códigos repetidos")
	}
}

func TestFormat(t *testing.T) {
	if got := Format("A1B2C3D4"); got != "A1B2-C3D4" {
		t.Fatalf("Format = %q", got)
	}
	// Largo inesperado se devuelve tal cual
	if got := Format("ABC"); got != "ABC" {
		t.Fatalf("Format corto = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"a1b2-c3d4":  "A1B2C3D4",
		"A1B2 C3D4":  "A1B2C3D4",
		" a1b2c3d4 ": "A1B2C3D4",
		"A1B2C3D4":   "A1B2C3D4",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, esperaba %q", in, got, want)
		}
	}
}
