package bridge

import (
	"errors"
	"testing"
)

func TestGenericAddressRoundTrip(t *testing.T) {
	var native [20]byte
	for i := range native {
		native[i] = byte(i + 1)
	}
	generic := GenericFromNative(native)
	for _, b := range generic[:12] {
		if b != 0 {
			t.Fatalf("expected zero padding, got %x", generic)
		}
	}
	back, err := generic.Native()
	if err != nil {
		t.Fatalf("narrow: %v", err)
	}
	if back != native {
		t.Fatalf("address did not survive widening: %x != %x", back, native)
	}
}

func TestGenericAddressRejectsPadding(t *testing.T) {
	var generic GenericAddress
	generic[31] = 0x01
	generic[0] = 0x01
	if _, err := generic.Native(); !errors.Is(err, errAddressPadding) {
		t.Fatalf("expected padding rejection, got %v", err)
	}

	generic[0] = 0
	generic[11] = 0xff
	if _, err := generic.Native(); !errors.Is(err, errAddressPadding) {
		t.Fatalf("expected padding rejection for last pad byte, got %v", err)
	}
}

func TestGenericAddressIsZero(t *testing.T) {
	var generic GenericAddress
	if !generic.IsZero() {
		t.Fatalf("zero value must report zero")
	}
	generic[12] = 1
	if generic.IsZero() {
		t.Fatalf("non-zero address must not report zero")
	}
}
