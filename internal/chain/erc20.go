package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Tokens provides ERC-20 reads and transfers through the trading wallet.
// Token decimals are immutable on-chain, so they are cached for the process
// lifetime after the first read.
type Tokens struct {
	wallet *Wallet
	abi    abi.ABI

	mu       sync.RWMutex
	decimals map[common.Address]int32
}

func NewTokens(wallet *Wallet) (*Tokens, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Tokens{
		wallet:   wallet,
		abi:      parsed,
		decimals: make(map[common.Address]int32),
	}, nil
}

func (t *Tokens) contract(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, t.abi, t.wallet.eth, t.wallet.eth, t.wallet.eth)
}

// Decimals returns the token's decimal count, cached after the first call.
func (t *Tokens) Decimals(ctx context.Context, token string) (int32, error) {
	addr := common.HexToAddress(token)

	t.mu.RLock()
	if d, ok := t.decimals[addr]; ok {
		t.mu.RUnlock()
		return d, nil
	}
	t.mu.RUnlock()

	var out []interface{}
	if err := t.contract(addr).Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("read decimals for %s: %w", token, err)
	}
	d := int32(out[0].(uint8))

	t.mu.Lock()
	t.decimals[addr] = d
	t.mu.Unlock()
	return d, nil
}

// BalanceOf returns owner's normalized token balance.
func (t *Tokens) BalanceOf(ctx context.Context, token, owner string) (decimal.Decimal, error) {
	d, err := t.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}

	var out []interface{}
	err = t.contract(common.HexToAddress(token)).Call(
		&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance of %s: %w", token, err)
	}
	return FromBaseUnits(out[0].(*big.Int), d), nil
}

// WalletBalance returns the trading wallet's normalized token balance.
func (t *Tokens) WalletBalance(ctx context.Context, token string) (decimal.Decimal, error) {
	return t.BalanceOf(ctx, token, t.wallet.Address())
}

// Transfer moves a normalized amount of token to the recipient and waits for
// the transaction to be mined. Returns the transaction hash.
func (t *Tokens) Transfer(ctx context.Context, token, to string, amount decimal.Decimal) (string, error) {
	d, err := t.Decimals(ctx, token)
	if err != nil {
		return "", err
	}

	opts, err := t.wallet.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := t.contract(common.HexToAddress(token)).Transact(
		opts, "transfer", common.HexToAddress(to), ToBaseUnits(amount, d))
	if err != nil {
		return "", fmt.Errorf("transfer %s %s to %s: %w", amount, token, to, err)
	}

	if _, err := t.wallet.waitMined(ctx, tx); err != nil {
		return "", err
	}

	t.wallet.logger.Info("chain.transfer_mined",
		zap.String("token", token),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), nil
}

// EnsureAllowance approves spender for at least amount of token. A no-op
// when the current allowance already covers it.
func (t *Tokens) EnsureAllowance(ctx context.Context, token, spender string, amount decimal.Decimal) error {
	d, err := t.Decimals(ctx, token)
	if err != nil {
		return err
	}
	needed := ToBaseUnits(amount, d)

	tokenAddr := common.HexToAddress(token)
	spenderAddr := common.HexToAddress(spender)

	var out []interface{}
	err = t.contract(tokenAddr).Call(
		&bind.CallOpts{Context: ctx}, &out, "allowance", t.wallet.address, spenderAddr)
	if err != nil {
		return fmt.Errorf("read allowance for %s: %w", token, err)
	}
	if current := out[0].(*big.Int); current.Cmp(needed) >= 0 {
		return nil
	}

	opts, err := t.wallet.transactOpts(ctx)
	if err != nil {
		return err
	}

	tx, err := t.contract(tokenAddr).Transact(opts, "approve", spenderAddr, needed)
	if err != nil {
		return fmt.Errorf("approve %s for %s: %w", token, spender, err)
	}
	if _, err := t.wallet.waitMined(ctx, tx); err != nil {
		return err
	}

	t.wallet.logger.Info("chain.approval_mined",
		zap.String("token", token),
		zap.String("spender", spender),
		zap.String("amount", amount.String()),
		zap.String("tx", tx.Hash().Hex()),
	)
	return nil
}
