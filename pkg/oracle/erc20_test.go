package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "0x9427A2a738AffBc5880F0646b5251069c022e525"
	testWallet = "0x00000000000000000000000000000000000000aa"
)

type fakeCaller struct {
	balance       *big.Int
	decimals      *uint8
	balanceErr    error
	block         bool
	blockDecimals bool
	calls         []string
	lastTo        common.Address
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	method, err := tokenABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method.Name)
	f.lastTo = *msg.To

	switch method.Name {
	case "balanceOf":
		if f.balanceErr != nil {
			return nil, f.balanceErr
		}
		return method.Outputs.Pack(f.balance)
	case "decimals":
		if f.blockDecimals {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if f.decimals == nil {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(*f.decimals)
	}
	return nil, errors.New("unexpected method")
}

func u8(v uint8) *uint8 { return &v }

// cancellingCaller cancels the request context once balanceOf has answered,
// so the decimals call fails because of the context.
type cancellingCaller struct {
	fakeCaller
	cancel context.CancelFunc
}

func (c *cancellingCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if len(c.calls) == 1 {
		c.cancel()
		return nil, errors.New("request aborted")
	}
	return c.fakeCaller.CallContract(ctx, msg, block)
}

func TestERC20Oracle_BalanceOf(t *testing.T) {
	t.Run("ScalesByDecimals", func(t *testing.T) {
		raw, _ := new(big.Int).SetString("750500000", 10)
		caller := &fakeCaller{balance: raw, decimals: u8(6)}
		o, err := NewERC20Oracle(caller, testToken, time.Second)
		require.NoError(t, err)

		bal, err := o.BalanceOf(context.Background(), testWallet)
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.RequireFromString("750.5")), "got %s", bal)
		assert.Equal(t, []string{"balanceOf", "decimals"}, caller.calls)
		assert.Equal(t, common.HexToAddress(testToken), caller.lastTo)
	})

	t.Run("DefaultsTo18Decimals", func(t *testing.T) {
		raw, _ := new(big.Int).SetString("10000000000000000000", 10)
		o, err := NewERC20Oracle(&fakeCaller{balance: raw}, testToken, 0)
		require.NoError(t, err)

		bal, err := o.BalanceOf(context.Background(), testWallet)
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.NewFromInt(10)), "got %s", bal)
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		caller := &fakeCaller{balance: big.NewInt(1)}
		o, err := NewERC20Oracle(caller, testToken, 0)
		require.NoError(t, err)

		_, err = o.BalanceOf(context.Background(), "not-an-address")
		require.ErrorIs(t, err, ErrInvalidAddress)
		assert.Empty(t, caller.calls)
	})

	t.Run("PropagatesCallFailure", func(t *testing.T) {
		rpcErr := errors.New("connection refused")
		o, err := NewERC20Oracle(&fakeCaller{balanceErr: rpcErr}, testToken, 0)
		require.NoError(t, err)

		_, err = o.BalanceOf(context.Background(), testWallet)
		require.ErrorIs(t, err, rpcErr)
	})

	t.Run("DecimalsTimeoutIsAnError", func(t *testing.T) {
		raw := big.NewInt(750000000)
		o, err := NewERC20Oracle(&fakeCaller{balance: raw, decimals: u8(6), blockDecimals: true}, testToken, 30*time.Millisecond)
		require.NoError(t, err)

		bal, err := o.BalanceOf(context.Background(), testWallet)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, bal.IsZero())
	})

	t.Run("CancelledBeforeDecimals", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		caller := &cancellingCaller{fakeCaller: fakeCaller{balance: big.NewInt(1)}, cancel: cancel}
		o, err := NewERC20Oracle(caller, testToken, 0)
		require.NoError(t, err)

		_, err = o.BalanceOf(ctx, testWallet)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("TimesOut", func(t *testing.T) {
		o, err := NewERC20Oracle(&fakeCaller{block: true}, testToken, 20*time.Millisecond)
		require.NoError(t, err)

		_, err = o.BalanceOf(context.Background(), testWallet)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewERC20Oracle_RejectsBadToken(t *testing.T) {
	_, err := NewERC20Oracle(&fakeCaller{}, "0x123", 0)
	require.Error(t, err)
}
