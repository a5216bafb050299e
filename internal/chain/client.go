package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Wallet wraps an RPC connection and the trading key. It is the only place
// that touches raw key material; everything above works with hex addresses
// and decimal amounts.
type Wallet struct {
	logger  *zap.Logger
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	timeout time.Duration
}

// Dial connects to the RPC endpoint and verifies it serves the expected
// network before any transaction can be signed against the wrong chain.
func Dial(ctx context.Context, logger *zap.Logger, rpcURL, privateKeyHex string, network model.Network) (*Wallet, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if chainID.Int64() != network.ChainID() {
		return nil, fmt.Errorf("rpc serves chain %d, expected %s (%d)", chainID.Int64(), network, network.ChainID())
	}

	w := &Wallet{
		logger:  logger,
		eth:     eth,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		timeout: 2 * time.Minute,
	}

	logger.Info("chain.wallet_connected",
		zap.String("address", w.Address()),
		zap.String("network", network.String()),
	)
	return w, nil
}

// Address returns the checksummed wallet address.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Network returns the connected network.
func (w *Wallet) Network() model.Network {
	return model.Network(w.chainID.Int64())
}

// SignText signs a plain-text message with the EIP-191 personal-message
// prefix, matching what wallet UIs produce for the platform login flow.
func (w *Wallet) SignText(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	// Recovery byte goes from 0/1 to 27/28 on the wire.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// Close releases the underlying RPC connection.
func (w *Wallet) Close() {
	w.eth.Close()
}

func (w *Wallet) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// waitMined blocks until the transaction is mined and fails on a reverted
// receipt.
func (w *Wallet) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, w.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("tx %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}
