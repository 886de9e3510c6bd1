package ton

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/tonpay/burn-relayer/relayer/constant"
	"github.com/tonpay/burn-relayer/relayer/errors"
)

// Message bodies are a closed set of tagged variants, one per operation the
// relayer exchanges with its contracts. Layout: big-endian 32-bit opcode,
// then operation-specific fields. Addresses are length-prefixed UTF-8,
// amounts are 16-byte big-endian integers.

const amountWidth = 16

// PaymentNotice is the incoming body attached by the subscription contract
// to a forwarded payment. It names the user the payment belongs to.
type PaymentNotice struct {
	UserAddress string
}

// BurnBody instructs the jetton wallet to destroy tokens.
type BurnBody struct {
	QueryID      uint64
	Amount       *big.Int
	ResponseDest string
}

// SwapCallback reports the final outcome of a processed payment to the
// subscription contract.
type SwapCallback struct {
	UserAddress  string
	JettonAmount *big.Int
	Success      bool
}

// RefundUser returns the original payment to the payer.
type RefundUser struct {
	UserAddress string
	Amount      *big.Int
}

// Encode serializes the payment notice. Used by tests and the operator
// tooling; the contract is the usual producer.
func (m *PaymentNotice) Encode() []byte {
	var buf bytes.Buffer
	writeOpcode(&buf, constant.OpPaymentNotice)
	writeAddress(&buf, m.UserAddress)
	return buf.Bytes()
}

// DecodePaymentNotice parses an incoming body as a payment notice.
func DecodePaymentNotice(body []byte) (*PaymentNotice, error) {
	r := bytes.NewReader(body)
	if err := expectOpcode(r, constant.OpPaymentNotice); err != nil {
		return nil, err
	}
	addr, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	return &PaymentNotice{UserAddress: addr}, nil
}

// Encode serializes the burn instruction.
func (m *BurnBody) Encode() []byte {
	var buf bytes.Buffer
	writeOpcode(&buf, constant.OpJettonBurn)
	binary.Write(&buf, binary.BigEndian, m.QueryID)
	writeAmount(&buf, m.Amount)
	writeAddress(&buf, m.ResponseDest)
	return buf.Bytes()
}

// DecodeBurnBody parses a burn instruction.
func DecodeBurnBody(body []byte) (*BurnBody, error) {
	r := bytes.NewReader(body)
	if err := expectOpcode(r, constant.OpJettonBurn); err != nil {
		return nil, err
	}
	var queryID uint64
	if err := binary.Read(r, binary.BigEndian, &queryID); err != nil {
		return nil, errors.New(errors.ErrCodeParse, "burn body truncated before query id")
	}
	amount, err := readAmount(r)
	if err != nil {
		return nil, err
	}
	dest, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	return &BurnBody{QueryID: queryID, Amount: amount, ResponseDest: dest}, nil
}

// Encode serializes the swap callback.
func (m *SwapCallback) Encode() []byte {
	var buf bytes.Buffer
	writeOpcode(&buf, constant.OpSwapCallback)
	writeAddress(&buf, m.UserAddress)
	writeAmount(&buf, m.JettonAmount)
	if m.Success {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeSwapCallback parses a swap callback body.
func DecodeSwapCallback(body []byte) (*SwapCallback, error) {
	r := bytes.NewReader(body)
	if err := expectOpcode(r, constant.OpSwapCallback); err != nil {
		return nil, err
	}
	addr, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	amount, err := readAmount(r)
	if err != nil {
		return nil, err
	}
	flag, err := r.ReadByte()
	if err != nil {
		return nil, errors.New(errors.ErrCodeParse, "callback body truncated before success flag")
	}
	return &SwapCallback{UserAddress: addr, JettonAmount: amount, Success: flag == 1}, nil
}

// Encode serializes the refund body.
func (m *RefundUser) Encode() []byte {
	var buf bytes.Buffer
	writeOpcode(&buf, constant.OpRefundUser)
	writeAddress(&buf, m.UserAddress)
	writeAmount(&buf, m.Amount)
	return buf.Bytes()
}

// DecodeRefundUser parses a refund body.
func DecodeRefundUser(body []byte) (*RefundUser, error) {
	r := bytes.NewReader(body)
	if err := expectOpcode(r, constant.OpRefundUser); err != nil {
		return nil, err
	}
	addr, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	amount, err := readAmount(r)
	if err != nil {
		return nil, err
	}
	return &RefundUser{UserAddress: addr, Amount: amount}, nil
}

// SwapOrder asks the venue router to convert attached native value into the
// target jetton, delivering at least MinOut to the recipient.
type SwapOrder struct {
	QueryID   uint64
	Offer     *big.Int
	MinOut    *big.Int
	Recipient string
}

// Encode serializes the swap order.
func (m *SwapOrder) Encode() []byte {
	var buf bytes.Buffer
	writeOpcode(&buf, constant.OpVenueSwap)
	binary.Write(&buf, binary.BigEndian, m.QueryID)
	writeAmount(&buf, m.Offer)
	writeAmount(&buf, m.MinOut)
	writeAddress(&buf, m.Recipient)
	return buf.Bytes()
}

// DecodeSwapOrder parses a swap order body.
func DecodeSwapOrder(body []byte) (*SwapOrder, error) {
	r := bytes.NewReader(body)
	if err := expectOpcode(r, constant.OpVenueSwap); err != nil {
		return nil, err
	}
	var queryID uint64
	if err := binary.Read(r, binary.BigEndian, &queryID); err != nil {
		return nil, errors.New(errors.ErrCodeParse, "swap body truncated before query id")
	}
	offer, err := readAmount(r)
	if err != nil {
		return nil, err
	}
	minOut, err := readAmount(r)
	if err != nil {
		return nil, err
	}
	recipient, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	return &SwapOrder{QueryID: queryID, Offer: offer, MinOut: minOut, Recipient: recipient}, nil
}

// PeekOpcode returns the opcode of an encoded body without consuming it.
func PeekOpcode(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, errors.New(errors.ErrCodeParse, "body shorter than opcode")
	}
	return binary.BigEndian.Uint32(body[:4]), nil
}

func writeOpcode(buf *bytes.Buffer, op uint32) {
	binary.Write(buf, binary.BigEndian, op)
}

func expectOpcode(r *bytes.Reader, want uint32) error {
	var op uint32
	if err := binary.Read(r, binary.BigEndian, &op); err != nil {
		return errors.New(errors.ErrCodeParse, "body shorter than opcode")
	}
	if op != want {
		return errors.Newf(errors.ErrCodeParse, "unexpected opcode 0x%08x, want 0x%08x", op, want)
	}
	return nil
}

func writeAddress(buf *bytes.Buffer, addr string) {
	raw := []byte(addr)
	if len(raw) > 255 {
		raw = raw[:255]
	}
	buf.WriteByte(byte(len(raw)))
	buf.Write(raw)
}

func readAddress(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", errors.New(errors.ErrCodeParse, "body truncated before address length")
	}
	raw := make([]byte, int(n))
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", errors.New(errors.ErrCodeParse, "body truncated inside address")
	}
	return string(raw), nil
}

func writeAmount(buf *bytes.Buffer, amount *big.Int) {
	var word [amountWidth]byte
	if amount != nil && amount.Sign() > 0 {
		amount.FillBytes(word[:])
	}
	buf.Write(word[:])
}

func readAmount(r *bytes.Reader) (*big.Int, error) {
	var word [amountWidth]byte
	if _, err := io.ReadFull(r, word[:]); err != nil {
		return nil, errors.New(errors.ErrCodeParse, "body truncated inside amount")
	}
	return new(big.Int).SetBytes(word[:]), nil
}
