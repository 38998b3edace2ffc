package bridge

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func testEnvelope(meta *MessageMetadata) envelope {
	var sender, handler GenericAddress
	sender[31] = 0xaa
	handler[31] = 0xbb
	return envelope{
		Sender:          sender,
		Handler:         handler,
		ReturnAdapterID: 7,
		ReturnGasLimit:  250_000,
		Payload: Payload{
			Action:      3,
			Account:     [32]byte{1, 2, 3},
			UserAddress: sender,
			Data:        []byte("deposit:1000"),
		},
		Metadata: meta,
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := testEnvelope(nil)
	wire, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeEnvelope(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Sender != env.Sender || decoded.Handler != env.Handler {
		t.Fatalf("addresses did not survive the round trip")
	}
	if decoded.ReturnAdapterID != env.ReturnAdapterID || decoded.ReturnGasLimit != env.ReturnGasLimit {
		t.Fatalf("return params did not survive the round trip")
	}
	if decoded.Payload.Action != env.Payload.Action || !bytes.Equal(decoded.Payload.Data, env.Payload.Data) {
		t.Fatalf("payload did not survive the round trip")
	}
	if decoded.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", decoded.Metadata)
	}
}

func TestEnvelopeRoundTripWithMetadata(t *testing.T) {
	var recipient GenericAddress
	recipient[31] = 0xcc
	env := testEnvelope(&MessageMetadata{
		SourceDomain: 6,
		Amount:       big.NewInt(1_000_000),
		Nonce:        42,
		Recipient:    recipient,
	})
	wire, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeEnvelope(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := decoded.Metadata
	if meta == nil {
		t.Fatalf("metadata lost in round trip")
	}
	if meta.SourceDomain != 6 || meta.Nonce != 42 || meta.Recipient != recipient {
		t.Fatalf("metadata fields did not survive: %+v", meta)
	}
	if meta.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("amount did not survive: %s", meta.Amount)
	}
}

func TestEnvelopeRejectsTrailingBytes(t *testing.T) {
	wire, err := encodeEnvelope(testEnvelope(nil))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := decodeEnvelope(append(wire, 0x00)); !errors.Is(err, errCodecTrailing) {
		t.Fatalf("expected trailing-byte rejection, got %v", err)
	}
}

func TestEnvelopeRejectsTruncation(t *testing.T) {
	wire, err := encodeEnvelope(testEnvelope(nil))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := decodeEnvelope(wire[:len(wire)-1]); !errors.Is(err, errCodecShortBuffer) {
		t.Fatalf("expected short-buffer rejection, got %v", err)
	}
}

func TestTransferArgsExactLength(t *testing.T) {
	args := TransferArgs{Amount: big.NewInt(5_000)}
	args.Token[31] = 0x01
	args.Recipient[31] = 0x02

	wire, err := EncodeTransferArgs(args)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(wire) != 96 {
		t.Fatalf("expected 96-byte encoding, got %d", len(wire))
	}
	decoded, err := DecodeTransferArgs(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Token != args.Token || decoded.Recipient != args.Recipient {
		t.Fatalf("addresses did not survive the round trip")
	}
	if decoded.Amount.Cmp(args.Amount) != 0 {
		t.Fatalf("amount did not survive: %s", decoded.Amount)
	}

	if _, err := DecodeTransferArgs(wire[:95]); !errors.Is(err, errCodecShortBuffer) {
		t.Fatalf("expected short-buffer rejection, got %v", err)
	}
	if _, err := DecodeTransferArgs(append(wire, 0xff)); !errors.Is(err, errCodecTrailing) {
		t.Fatalf("expected trailing-byte rejection, got %v", err)
	}
}

func TestTransferReceiptRoundTrip(t *testing.T) {
	receipt := TransferReceipt{
		SourceDomain: 3,
		Nonce:        9_001,
		Message:      []byte("burn-message"),
		Attestation:  []byte("attestation-bytes"),
	}
	wire, err := EncodeTransferReceipt(receipt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransferReceipt(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SourceDomain != receipt.SourceDomain || decoded.Nonce != receipt.Nonce {
		t.Fatalf("receipt keys did not survive: %+v", decoded)
	}
	if !bytes.Equal(decoded.Message, receipt.Message) || !bytes.Equal(decoded.Attestation, receipt.Attestation) {
		t.Fatalf("receipt bodies did not survive")
	}
}

func TestAmountEncodingBounds(t *testing.T) {
	if _, err := amountTo32(nil); !errors.Is(err, errCodecNilAmount) {
		t.Fatalf("expected nil amount rejection, got %v", err)
	}
	if _, err := amountTo32(big.NewInt(-1)); !errors.Is(err, errCodecAmountRange) {
		t.Fatalf("expected negative amount rejection, got %v", err)
	}
	over := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := amountTo32(over); !errors.Is(err, errCodecAmountRange) {
		t.Fatalf("expected oversized amount rejection, got %v", err)
	}
	max := new(big.Int).Sub(over, big.NewInt(1))
	slot, err := amountTo32(max)
	if err != nil {
		t.Fatalf("max uint256 should encode: %v", err)
	}
	if amountFrom32(slot).Cmp(max) != 0 {
		t.Fatalf("max uint256 did not survive the round trip")
	}
}

func TestReceivedEncodingBindsEveryField(t *testing.T) {
	msg := &MessageReceived{
		MessageID:     [32]byte{9},
		SourceChainID: 2,
		Payload:       Payload{Action: 1, Data: []byte("abc")},
	}
	base, err := encodeReceived(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	altered := *msg
	altered.Payload.Data = []byte("abd")
	reencoded, err := encodeReceived(&altered)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(base, reencoded) {
		t.Fatalf("payload change must change the encoding")
	}

	altered = *msg
	altered.ReturnGasLimit = 1
	reencoded, err = encodeReceived(&altered)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(base, reencoded) {
		t.Fatalf("return gas change must change the encoding")
	}
}

func TestEncodeRejectsOversizedVarFields(t *testing.T) {
	env := testEnvelope(nil)
	env.Payload.Data = make([]byte, 65_536)
	if _, err := encodeEnvelope(env); !errors.Is(err, errCodecVarLength) {
		t.Fatalf("expected var-length rejection, got %v", err)
	}

	receipt := TransferReceipt{Message: make([]byte, 65_536)}
	if _, err := EncodeTransferReceipt(receipt); !errors.Is(err, errCodecVarLength) {
		t.Fatalf("expected var-length rejection, got %v", err)
	}

	// One byte under the limit still encodes.
	env.Payload.Data = make([]byte, 65_535)
	if _, err := encodeEnvelope(env); err != nil {
		t.Fatalf("maximum-length field should encode: %v", err)
	}
}
