package ton

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpay/burn-relayer/relayer/constant"
	"github.com/tonpay/burn-relayer/relayer/errors"
)

func TestPaymentNoticeRoundtrip(t *testing.T) {
	original := &PaymentNotice{UserAddress: "0:abc123"}
	decoded, err := DecodePaymentNotice(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestBurnBodyRoundtrip(t *testing.T) {
	amount, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	original := &BurnBody{
		QueryID:      0xdeadbeefcafe,
		Amount:       amount,
		ResponseDest: "0:relayer",
	}
	decoded, err := DecodeBurnBody(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original.QueryID, decoded.QueryID)
	assert.Zero(t, original.Amount.Cmp(decoded.Amount))
	assert.Equal(t, original.ResponseDest, decoded.ResponseDest)
}

func TestSwapCallbackRoundtrip(t *testing.T) {
	for _, success := range []bool{true, false} {
		original := &SwapCallback{
			UserAddress:  "0:user",
			JettonAmount: big.NewInt(123456789),
			Success:      success,
		}
		decoded, err := DecodeSwapCallback(original.Encode())
		require.NoError(t, err)
		assert.Equal(t, original.UserAddress, decoded.UserAddress)
		assert.Zero(t, original.JettonAmount.Cmp(decoded.JettonAmount))
		assert.Equal(t, success, decoded.Success)
	}
}

func TestRefundUserRoundtrip(t *testing.T) {
	original := &RefundUser{UserAddress: "0:user", Amount: big.NewInt(5_000_000_000)}
	decoded, err := DecodeRefundUser(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original.UserAddress, decoded.UserAddress)
	assert.Zero(t, original.Amount.Cmp(decoded.Amount))
}

func TestSwapOrderRoundtrip(t *testing.T) {
	original := &SwapOrder{
		QueryID:   42,
		Offer:     big.NewInt(1_000_000_000),
		MinOut:    big.NewInt(950_000_000),
		Recipient: "0:wallet",
	}
	decoded, err := DecodeSwapOrder(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original.QueryID, decoded.QueryID)
	assert.Zero(t, original.Offer.Cmp(decoded.Offer))
	assert.Zero(t, original.MinOut.Cmp(decoded.MinOut))
	assert.Equal(t, original.Recipient, decoded.Recipient)
}

func TestDecodeRejectsWrongOpcode(t *testing.T) {
	body := (&RefundUser{UserAddress: "0:user", Amount: big.NewInt(1)}).Encode()

	_, err := DecodePaymentNotice(body)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeParse))
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	full := (&BurnBody{QueryID: 7, Amount: big.NewInt(100), ResponseDest: "0:dest"}).Encode()

	for cut := 1; cut < len(full); cut++ {
		_, err := DecodeBurnBody(full[:cut])
		require.Error(t, err, "cut at %d bytes", cut)
		assert.True(t, errors.HasCode(err, errors.ErrCodeParse))
	}
}

func TestPeekOpcode(t *testing.T) {
	body := (&PaymentNotice{UserAddress: "0:user"}).Encode()
	op, err := PeekOpcode(body)
	require.NoError(t, err)
	assert.Equal(t, constant.OpPaymentNotice, op)

	_, err = PeekOpcode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestEncodeZeroAmount(t *testing.T) {
	decoded, err := DecodeRefundUser((&RefundUser{UserAddress: "0:user", Amount: nil}).Encode())
	require.NoError(t, err)
	assert.Zero(t, decoded.Amount.Sign())
}
