package ledger

import (
	"math/bits"

	"github.com/mosaicnetworks/hyperdag/src/common"
)

// DevAddress collects the developer fee of every transfer.
const DevAddress = "2119707c4caf16139cfb5c09c4dcc9bf9cfe6808b571c108d739f49cc14793b9"

// The developer fee rate, 3.04%, as a fraction of devFeeDenominator.
const (
	devFeeNumerator   = 304
	devFeeDenominator = 10000
)

// DevFee returns amount * 3.04% rounded to the nearest unit, half away from
// zero.
func DevFee(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, devFeeNumerator)
	lo, carry := bits.Add64(lo, devFeeDenominator/2, 0)
	hi += carry
	q, _ := bits.Div64(hi, lo, devFeeDenominator)
	return q
}

// IsValidAddress reports whether s has the address format: 64 hexadecimal
// characters.
func IsValidAddress(s string) bool {
	return common.IsHex64(s)
}

func addUint64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
