package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/big"
)

var (
	errCodecShortBuffer = errors.New("bridge codec: input shorter than encoded fields")
	errCodecTrailing    = errors.New("bridge codec: trailing bytes after encoded fields")
	errCodecAmountRange = errors.New("bridge codec: amount does not fit in 32 bytes")
	errCodecNilAmount   = errors.New("bridge codec: nil amount")
	errCodecVarLength   = errors.New("bridge codec: variable-length field exceeds 65535 bytes")
)

// envelope is the wire form exchanged between adapters. Field order is fixed;
// every multi-byte integer is big-endian and every variable-length field is
// prefixed with a uint16 length. Metadata is optional and signalled by a
// presence byte.
type envelope struct {
	Sender          GenericAddress
	Handler         GenericAddress
	ReturnAdapterID uint16
	ReturnGasLimit  uint64
	Payload         Payload
	Metadata        *MessageMetadata
}

type encoder struct {
	buf bytes.Buffer
	err error
}

func (e *encoder) putU8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *encoder) putU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	e.buf.Write(tmp[:])
}

func (e *encoder) putU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf.Write(tmp[:])
}

func (e *encoder) putU64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf.Write(tmp[:])
}

func (e *encoder) putBytes32(v [32]byte) {
	e.buf.Write(v[:])
}

func (e *encoder) putVarBytes(v []byte) {
	if e.err != nil {
		return
	}
	if len(v) > math.MaxUint16 {
		e.err = errCodecVarLength
		return
	}
	e.putU16(uint16(len(v)))
	e.buf.Write(v)
}

func (e *encoder) bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}

type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.data) {
		d.err = errCodecShortBuffer
		return nil
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) bytes32() [32]byte {
	var out [32]byte
	b := d.take(32)
	if b != nil {
		copy(out[:], b)
	}
	return out
}

func (d *decoder) varBytes() []byte {
	n := int(d.u16())
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// finish rejects inputs that carry bytes beyond the encoded fields. A longer
// buffer means the sender and receiver disagree on the layout, which must
// never be silently tolerated.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return errCodecTrailing
	}
	return nil
}

// amountTo32 widens a non-negative big integer into a fixed 32-byte slot.
func amountTo32(v *big.Int) ([32]byte, error) {
	var out [32]byte
	if v == nil {
		return out, errCodecNilAmount
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return out, errCodecAmountRange
	}
	v.FillBytes(out[:])
	return out, nil
}

func amountFrom32(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}

func encodePayloadInto(e *encoder, p Payload) {
	e.putU16(p.Action)
	e.putBytes32(p.Account)
	e.putBytes32([32]byte(p.UserAddress))
	e.putVarBytes(p.Data)
}

func decodePayloadFrom(d *decoder) Payload {
	var p Payload
	p.Action = d.u16()
	p.Account = d.bytes32()
	p.UserAddress = GenericAddress(d.bytes32())
	p.Data = d.varBytes()
	return p
}

func encodeEnvelope(env envelope) ([]byte, error) {
	var e encoder
	e.putBytes32([32]byte(env.Sender))
	e.putBytes32([32]byte(env.Handler))
	e.putU16(env.ReturnAdapterID)
	e.putU64(env.ReturnGasLimit)
	encodePayloadInto(&e, env.Payload)
	if env.Metadata == nil {
		e.putU8(0)
	} else {
		amount, err := amountTo32(env.Metadata.Amount)
		if err != nil {
			return nil, err
		}
		e.putU8(1)
		e.putU32(env.Metadata.SourceDomain)
		e.putBytes32(amount)
		e.putU64(env.Metadata.Nonce)
		e.putBytes32([32]byte(env.Metadata.Recipient))
	}
	return e.bytes()
}

func decodeEnvelope(data []byte) (envelope, error) {
	d := decoder{data: data}
	var env envelope
	env.Sender = GenericAddress(d.bytes32())
	env.Handler = GenericAddress(d.bytes32())
	env.ReturnAdapterID = d.u16()
	env.ReturnGasLimit = d.u64()
	env.Payload = decodePayloadFrom(&d)
	if d.u8() == 1 {
		meta := &MessageMetadata{
			SourceDomain: d.u32(),
			Amount:       amountFrom32(d.bytes32()),
			Nonce:        d.u64(),
			Recipient:    GenericAddress(d.bytes32()),
		}
		env.Metadata = meta
	}
	if err := d.finish(); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// EncodeTransferArgs packs token transfer extra-args into their wire form:
// three fixed 32-byte slots for token, amount and recipient.
func EncodeTransferArgs(args TransferArgs) ([]byte, error) {
	amount, err := amountTo32(args.Amount)
	if err != nil {
		return nil, err
	}
	var e encoder
	e.putBytes32([32]byte(args.Token))
	e.putBytes32(amount)
	e.putBytes32([32]byte(args.Recipient))
	return e.bytes()
}

// DecodeTransferArgs is the inverse of EncodeTransferArgs. The input must be
// exactly 96 bytes.
func DecodeTransferArgs(data []byte) (TransferArgs, error) {
	d := decoder{data: data}
	args := TransferArgs{
		Token:     GenericAddress(d.bytes32()),
		Amount:    amountFrom32(d.bytes32()),
		Recipient: GenericAddress(d.bytes32()),
	}
	if err := d.finish(); err != nil {
		return TransferArgs{}, err
	}
	return args, nil
}

// EncodeTransferReceipt packs an attached token transfer proof.
func EncodeTransferReceipt(r TransferReceipt) ([]byte, error) {
	var e encoder
	e.putU32(r.SourceDomain)
	e.putU64(r.Nonce)
	e.putVarBytes(r.Message)
	e.putVarBytes(r.Attestation)
	return e.bytes()
}

// DecodeTransferReceipt is the inverse of EncodeTransferReceipt.
func DecodeTransferReceipt(data []byte) (TransferReceipt, error) {
	d := decoder{data: data}
	r := TransferReceipt{
		SourceDomain: d.u32(),
		Nonce:        d.u64(),
		Message:      d.varBytes(),
		Attestation:  d.varBytes(),
	}
	if err := d.finish(); err != nil {
		return TransferReceipt{}, err
	}
	return r, nil
}

// encodeReceived serialises an inbound message into the canonical byte form
// used for failure hashing. Retried and reversed messages must re-encode to
// the exact bytes recorded at failure time.
func encodeReceived(msg *MessageReceived) ([]byte, error) {
	var e encoder
	e.putBytes32(msg.MessageID)
	e.putU16(msg.SourceChainID)
	e.putBytes32([32]byte(msg.SourceAddress))
	e.putBytes32([32]byte(msg.Handler))
	encodePayloadInto(&e, msg.Payload)
	e.putU16(msg.ReturnAdapterID)
	e.putU64(msg.ReturnGasLimit)
	return e.bytes()
}
