package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const offerBookABI = `[
	{"inputs":[
		{"internalType":"uint256","name":"offerId","type":"uint256"},
		{"internalType":"uint256","name":"withdrawalAmountPaid","type":"uint256"},
		{"internalType":"address","name":"affiliate","type":"address"}],
	 "name":"takeOfferFixed","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"offerId","type":"uint256"},
		{"internalType":"uint256","name":"withdrawalAmountPaid","type":"uint256"},
		{"internalType":"uint256","name":"maximumDepositToWithdrawalRate","type":"uint256"},
		{"internalType":"address","name":"affiliate","type":"address"}],
	 "name":"takeOfferDynamic","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"internalType":"address","name":"depositToken","type":"address"},
		{"internalType":"uint256","name":"depositAmount","type":"uint256"},
		{"internalType":"address","name":"withdrawToken","type":"address"},
		{"internalType":"uint256","name":"withdrawAmount","type":"uint256"},
		{"internalType":"bool","name":"isDynamic","type":"bool"},
		{"internalType":"uint256","name":"expiresAt","type":"uint256"}],
	 "name":"makeOffer","outputs":[{"internalType":"uint256","name":"offerId","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"offerId","type":"uint256"}],
	 "name":"cancelOffer","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint256","name":"offerId","type":"uint256"},
		{"indexed":true,"internalType":"address","name":"maker","type":"address"}],
	 "name":"OfferCreated","type":"event"}
]`

var zeroAddress = common.Address{}

// OfferBook binds the on-chain offer book manager contract. Amounts are
// smallest-unit integers exactly as the offer API reports them; conversion
// to normalized form happens in the venue layer.
type OfferBook struct {
	wallet  *Wallet
	abi     abi.ABI
	address common.Address
}

func NewOfferBook(wallet *Wallet, contractAddress string) (*OfferBook, error) {
	parsed, err := abi.JSON(strings.NewReader(offerBookABI))
	if err != nil {
		return nil, fmt.Errorf("parse offer book abi: %w", err)
	}
	return &OfferBook{
		wallet:  wallet,
		abi:     parsed,
		address: common.HexToAddress(contractAddress),
	}, nil
}

// ContractAddress returns the bound contract address, the spender for
// taker-side approvals.
func (b *OfferBook) ContractAddress() string {
	return b.address.Hex()
}

func (b *OfferBook) contract() *bind.BoundContract {
	return bind.NewBoundContract(b.address, b.abi, b.wallet.eth, b.wallet.eth, b.wallet.eth)
}

// TakeOfferFixed settles a fixed-price offer. withdrawalAmountPaid is the
// smallest-unit amount of the maker's withdrawal asset the taker pays.
func (b *OfferBook) TakeOfferFixed(ctx context.Context, offerID string, withdrawalAmountPaid *big.Int) (string, error) {
	id, err := ParseOfferID(offerID)
	if err != nil {
		return "", err
	}

	opts, err := b.wallet.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := b.contract().Transact(opts, "takeOfferFixed", id, withdrawalAmountPaid, zeroAddress)
	if err != nil {
		return "", fmt.Errorf("take fixed offer %s: %w", offerID, err)
	}
	if _, err := b.wallet.waitMined(ctx, tx); err != nil {
		return "", err
	}

	b.wallet.logger.Info("chain.offer_taken",
		zap.String("offer_id", offerID),
		zap.String("amount_paid", withdrawalAmountPaid.String()),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), nil
}

// TakeOfferDynamic settles a dynamic-price offer. maxRate caps the on-chain
// deposit-to-withdrawal rate in withdrawal token decimals; the contract
// reverts if the live rate exceeds it.
func (b *OfferBook) TakeOfferDynamic(ctx context.Context, offerID string, withdrawalAmountPaid, maxRate *big.Int) (string, error) {
	id, err := ParseOfferID(offerID)
	if err != nil {
		return "", err
	}

	opts, err := b.wallet.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := b.contract().Transact(opts, "takeOfferDynamic", id, withdrawalAmountPaid, maxRate, zeroAddress)
	if err != nil {
		return "", fmt.Errorf("take dynamic offer %s: %w", offerID, err)
	}
	if _, err := b.wallet.waitMined(ctx, tx); err != nil {
		return "", err
	}

	b.wallet.logger.Info("chain.offer_taken",
		zap.String("offer_id", offerID),
		zap.String("amount_paid", withdrawalAmountPaid.String()),
		zap.String("max_rate", maxRate.String()),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), nil
}

// MakeOffer publishes a new offer and returns the transaction hash plus the
// offer ID parsed from the OfferCreated event.
func (b *OfferBook) MakeOffer(ctx context.Context, depositToken string, depositAmount *big.Int, withdrawToken string, withdrawAmount *big.Int, isDynamic bool, expiresAt time.Time) (string, string, error) {
	opts, err := b.wallet.transactOpts(ctx)
	if err != nil {
		return "", "", err
	}

	expiry := big.NewInt(0)
	if !expiresAt.IsZero() {
		expiry = big.NewInt(expiresAt.Unix())
	}

	tx, err := b.contract().Transact(opts, "makeOffer",
		common.HexToAddress(depositToken), depositAmount,
		common.HexToAddress(withdrawToken), withdrawAmount,
		isDynamic, expiry)
	if err != nil {
		return "", "", fmt.Errorf("make offer: %w", err)
	}

	receipt, err := b.wallet.waitMined(ctx, tx)
	if err != nil {
		return "", "", err
	}

	offerID := ""
	createdTopic := b.abi.Events["OfferCreated"].ID
	for _, log := range receipt.Logs {
		if log.Address == b.address && len(log.Topics) >= 2 && log.Topics[0] == createdTopic {
			offerID = new(big.Int).SetBytes(log.Topics[1].Bytes()).String()
			break
		}
	}

	b.wallet.logger.Info("chain.offer_created",
		zap.String("offer_id", offerID),
		zap.String("deposit_token", depositToken),
		zap.String("withdraw_token", withdrawToken),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), offerID, nil
}

// CancelOffer withdraws an offer. Only the maker's wallet can do this.
func (b *OfferBook) CancelOffer(ctx context.Context, offerID string) (string, error) {
	id, err := ParseOfferID(offerID)
	if err != nil {
		return "", err
	}

	opts, err := b.wallet.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := b.contract().Transact(opts, "cancelOffer", id)
	if err != nil {
		return "", fmt.Errorf("cancel offer %s: %w", offerID, err)
	}
	if _, err := b.wallet.waitMined(ctx, tx); err != nil {
		return "", err
	}

	b.wallet.logger.Info("chain.offer_cancelled",
		zap.String("offer_id", offerID),
		zap.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), nil
}
