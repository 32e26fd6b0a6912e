package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrPaymentRequired is returned when a scan request carries no payment proof
	// and the service requires one.
	ErrPaymentRequired = errors.New("payment required")

	// ErrPaymentInvalid is returned when a payment proof does not check out
	// on chain: wrong recipient, insufficient value, or a failed transaction.
	ErrPaymentInvalid = errors.New("payment invalid")
)

// Verifier checks a payment proof before a scan is accepted.
type Verifier interface {
	VerifyPayment(ctx context.Context, txHash string) error
}

// EthVerifier verifies payment transactions against an Ethereum node.
type EthVerifier struct {
	client    *ethclient.Client
	recipient common.Address
	minWei    *big.Int
}

// NewEthVerifier dials the given RPC endpoint and verifies that payments go
// to recipient with at least minWei attached.
func NewEthVerifier(rpcURL, recipient string, minWei *big.Int) (*EthVerifier, error) {
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("invalid recipient address: %s", recipient)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	return &EthVerifier{
		client:    client,
		recipient: common.HexToAddress(recipient),
		minWei:    minWei,
	}, nil
}

// VerifyPayment confirms that txHash is a mined, successful transfer of at
// least the configured fee to the configured recipient.
func (v *EthVerifier) VerifyPayment(ctx context.Context, txHash string) error {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return ErrPaymentRequired
	}

	hash := common.HexToHash(txHash)
	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: transaction %s not found: %v", ErrPaymentInvalid, txHash, err)
	}
	if pending {
		return fmt.Errorf("%w: transaction %s not yet mined", ErrPaymentInvalid, txHash)
	}

	if err := checkTransfer(tx, v.recipient, v.minWei); err != nil {
		return err
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: no receipt for %s: %v", ErrPaymentInvalid, txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", ErrPaymentInvalid, txHash)
	}

	return nil
}

// checkTransfer validates the destination and value of a payment transaction.
func checkTransfer(tx *types.Transaction, recipient common.Address, minWei *big.Int) error {
	to := tx.To()
	if to == nil || *to != recipient {
		return fmt.Errorf("%w: wrong recipient", ErrPaymentInvalid)
	}

	if minWei != nil && tx.Value().Cmp(minWei) < 0 {
		return fmt.Errorf("%w: value %s below required fee %s", ErrPaymentInvalid, tx.Value(), minWei)
	}

	return nil
}

// Close releases the underlying RPC connection.
func (v *EthVerifier) Close() {
	v.client.Close()
}
