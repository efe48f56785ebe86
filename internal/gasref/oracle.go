// Package gasref provides the gas price expressed in an input token, scaled by 2^96.
package gasref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/token"
)

const oracleABI = `[
  {"inputs":[{"internalType":"address","name":"token","type":"address"}],
   "name":"gasPriceX96","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`

// Backend is what the oracle needs from a node
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasPricer
}

// Oracle reads gasPriceX96(token) from an on-chain price contract.
// For the wrapped native token the node's gas price is used directly (1 wei of gas = 1 base unit).
type Oracle struct {
	backend       Backend
	contract      common.Address
	wrappedNative common.Address
	abi           abi.ABI
	logger        *slog.Logger
}

// NewOracle creates an oracle over any backend
func NewOracle(backend Backend, contract, wrappedNative common.Address, logger *slog.Logger) (*Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(oracleABI))
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}
	return &Oracle{
		backend:       backend,
		contract:      contract,
		wrappedNative: wrappedNative,
		abi:           parsed,
		logger:        logger.With("component", "GasOracle"),
	}, nil
}

// Dial connects to an RPC endpoint and creates an oracle
func Dial(ctx context.Context, rpcURL string, contract, wrappedNative common.Address, logger *slog.Logger) (*Oracle, *ethclient.Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}
	o, err := NewOracle(ec, contract, wrappedNative, logger)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return o, ec, nil
}

// GasPriceX96 returns the gas price in tokenIn base units, scaled by 2^96.
// Errors are returned as-is; there is no retry.
func (o *Oracle) GasPriceX96(ctx context.Context, tokenIn token.Token) (*big.Int, error) {
	if o.wrappedNative != (common.Address{}) && tokenIn.Address == o.wrappedNative {
		price, err := o.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return new(big.Int).Lsh(price, 96), nil
	}

	if o.contract == (common.Address{}) {
		return nil, fmt.Errorf("no gas price oracle for %s", tokenIn.Symbol)
	}

	input, err := o.abi.Pack("gasPriceX96", tokenIn.Address)
	if err != nil {
		return nil, fmt.Errorf("pack gasPriceX96: %w", err)
	}
	res, err := o.backend.CallContract(ctx, ethereum.CallMsg{To: &o.contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call gasPriceX96: %w", err)
	}
	outs, err := o.abi.Methods["gasPriceX96"].Outputs.Unpack(res)
	if err != nil {
		return nil, fmt.Errorf("decode gasPriceX96: %w", err)
	}
	if len(outs) == 0 {
		return nil, errors.New("decode gasPriceX96: empty result")
	}
	v, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode gasPriceX96: unexpected type %T", outs[0])
	}

	o.logger.Debug("gas price read", "token", tokenIn.Symbol, "gasPriceX96", v.String())
	return v, nil
}

// Fixed always returns the same value; used for local runs
type Fixed struct {
	value *big.Int
}

// NewFixed parses a base-10 X96 value
func NewFixed(x96 string) (*Fixed, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(x96), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas price x96 %q", x96)
	}
	return &Fixed{value: v}, nil
}

// GasPriceX96 returns the configured value
func (f *Fixed) GasPriceX96(context.Context, token.Token) (*big.Int, error) {
	return new(big.Int).Set(f.value), nil
}
