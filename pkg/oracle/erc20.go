// Package oracle reads ERC-20 token balances over JSON-RPC.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// DefaultDecimals is used when the token does not answer decimals().
const DefaultDecimals = 18

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var ErrInvalidAddress = errors.New("invalid wallet address")

var tokenABI = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("oracle: bad erc20 abi: %v", err))
	}
	return parsed
}

// BalanceOracle returns the human-readable token balance of an address.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)
}

// ERC20Oracle queries a single token contract through a contract caller,
// usually an *ethclient.Client.
type ERC20Oracle struct {
	caller  ethereum.ContractCaller
	token   common.Address
	timeout time.Duration
}

// Dial connects to rpcURL and returns an oracle for the token at tokenAddress.
// A zero timeout leaves calls bounded only by the caller's context.
func Dial(ctx context.Context, rpcURL, tokenAddress string, timeout time.Duration) (*ERC20Oracle, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	o, err := NewERC20Oracle(client, tokenAddress, timeout)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return o, client, nil
}

func NewERC20Oracle(caller ethereum.ContractCaller, tokenAddress string, timeout time.Duration) (*ERC20Oracle, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address %q", tokenAddress)
	}
	return &ERC20Oracle{
		caller:  caller,
		token:   common.HexToAddress(tokenAddress),
		timeout: timeout,
	}, nil
}

func (o *ERC20Oracle) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	out, err := o.call(ctx, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("balanceOf: unexpected result type %T", out[0])
	}

	decimals, err := o.decimals(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimals: %w", err)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

// decimals falls back to DefaultDecimals when the token reverts or answers
// garbage. A cancelled or expired context is an error, not a fallback.
func (o *ERC20Oracle) decimals(ctx context.Context) (uint8, error) {
	out, err := o.call(ctx, "decimals")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return DefaultDecimals, nil
	}
	d, ok := out[0].(uint8)
	if !ok {
		return DefaultDecimals, nil
	}
	return d, nil
}

func (o *ERC20Oracle) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	res, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := tokenABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return out, nil
}
