package chain

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/consensus/misc/eip4844"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

const (
	BlobGasPerBlob = params.BlobTxBlobGasPerBlob
	BlobSizeBytes  = 131072
)

// BlobParams is one version of the blob fee-market parameters.
type BlobParams struct {
	Name           string
	Target         uint64
	Max            uint64
	UpdateFraction uint64
}

var (
	CancunBlobParams = BlobParams{Name: "cancun", Target: 3, Max: 6, UpdateFraction: params.BlobTxBlobGaspriceUpdateFraction}
	PragueBlobParams = BlobParams{Name: "prague", Target: 6, Max: 9, UpdateFraction: 5007716}
	OsakaBlobParams  = BlobParams{Name: "osaka", Target: 6, Max: 9, UpdateFraction: 5007716}
	BPO1BlobParams   = BlobParams{Name: "bpo1", Target: 10, Max: 15, UpdateFraction: 8346193}
	BPO2BlobParams   = BlobParams{Name: "bpo2", Target: 14, Max: 21, UpdateFraction: 11684671}
)

var knownBlobParams = []BlobParams{
	CancunBlobParams, PragueBlobParams, OsakaBlobParams, BPO1BlobParams, BPO2BlobParams,
}

func BlobParamsByName(name string) (BlobParams, error) {
	for _, p := range knownBlobParams {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return BlobParams{}, fmt.Errorf("%w: %s", ErrUnknownParams, name)
}

// BlobFee returns the blob base fee per blob gas for the given excess blob gas.
func (p BlobParams) BlobFee(excessBlobGas uint64) *big.Int {
	if p.UpdateFraction == params.BlobTxBlobGaspriceUpdateFraction {
		return eip4844.CalcBlobFee(excessBlobGas)
	}
	return fakeExponential(big.NewInt(params.BlobTxMinBlobGasprice), new(big.Int).SetUint64(excessBlobGas),
		new(big.Int).SetUint64(p.UpdateFraction))
}

// HeaderBlobFee prices the header's excess blob gas, clamped to fit a signed 64-bit column.
// Headers without an excess blob gas field price at zero.
func (p BlobParams) HeaderBlobFee(header *types.Header) (fee uint64, excess uint64) {
	if header.ExcessBlobGas == nil {
		return 0, 0
	}
	excess = *header.ExcessBlobGas
	f := p.BlobFee(excess)
	if !f.IsUint64() || f.Uint64() > math.MaxInt64 {
		return math.MaxInt64, excess
	}
	return f.Uint64(), excess
}

// fakeExponential approximates factor * e ** (numerator / denominator) using Taylor expansion.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
