package constant

// Opcodes carried in message bodies exchanged with the subscription
// contract, the jetton wallet, and incoming payment notices.
const (
	// OpPaymentNotice marks an incoming payment forwarded by the
	// subscription contract. The body carries the paying user's address.
	OpPaymentNotice uint32 = 0x73616d70

	// OpSwapCallback reports a finished swap+burn back to the
	// subscription contract.
	OpSwapCallback uint32 = 0x05

	// OpRefundUser returns the original payment to the payer via the
	// subscription contract.
	OpRefundUser uint32 = 0x06

	// OpJettonBurn is the standard jetton burn opcode understood by the
	// token wallet contract.
	OpJettonBurn uint32 = 0x595f07bc

	// OpVenueSwap is the swap opcode of the exchange venue's router.
	OpVenueSwap uint32 = 0x6664de2a
)

// Default tunables. All of these can be overridden through config.
const (
	// DefaultGasReserveNanotons is held back from every incoming payment
	// to pay for the relayer's own outgoing messages (0.01 TON).
	DefaultGasReserveNanotons = "10000000"

	// DefaultMinSwapNanotons is the smallest amount the venue will
	// meaningfully swap (0.001 TON).
	DefaultMinSwapNanotons = "1000000"

	// DefaultMaxSwapNanotons caps a single swap (1000 TON).
	DefaultMaxSwapNanotons = "1000000000000"

	// DefaultBurnGasNanotons is attached to a burn message (0.1 TON).
	DefaultBurnGasNanotons = "100000000"

	// DefaultSwapGasNanotons is the venue forward gas attached on top of
	// the offered amount (0.185 TON).
	DefaultSwapGasNanotons = "185000000"

	// DefaultPoolFractionPercent caps a swap at this share of the pool's
	// native reserve.
	DefaultPoolFractionPercent = 10

	// DefaultSlippagePercent is applied to the expected output to derive
	// the minimum acceptable output.
	DefaultSlippagePercent = 5
)

const (
	RelayerDir = ".tonrelayer"

	DatabaseFileName = "relayer.db"
)
