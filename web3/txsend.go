package web3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vocdoni/votecommit/log"
)

const (
	sendMaxAttempts     = 10
	retryBackoff        = 300 * time.Millisecond
	replacementWaitHint = 400 * time.Millisecond
)

// send builds, signs and sends a self-addressed transaction carrying data,
// reconciling the nonce and bumping fees until the node accepts it.
func (a *Anchor) send(ctx context.Context, data []byte) (common.Hash, error) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	fees, err := a.fees.initial(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("initial fees: %w", err)
	}
	to := a.address
	gas, err := a.cli.EstimateGas(ctx, ethereum.CallMsg{
		From:      a.address,
		To:        &to,
		GasFeeCap: fees.FeeCap,
		GasTipCap: fees.TipCap,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas = gas * gasMarginNum / gasMarginDen

	for attempt := 1; attempt <= sendMaxAttempts; attempt++ {
		nonce, err := a.cli.PendingNonceAt(ctx, a.address)
		if err != nil {
			return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
		}
		tx, err := gethtypes.SignNewTx(a.key, gethtypes.LatestSignerForChainID(a.chainID), &gethtypes.DynamicFeeTx{
			ChainID:   a.chainID,
			Nonce:     nonce,
			GasTipCap: fees.TipCap,
			GasFeeCap: fees.FeeCap,
			Gas:       gas,
			To:        &to,
			Data:      data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("sign tx: %w", err)
		}
		sendErr := a.cli.SendTransaction(ctx, tx)
		if sendErr == nil || isAlreadyKnown(sendErr) {
			return tx.Hash(), nil
		}

		var wait time.Duration
		switch {
		case isNonceTooLow(sendErr):
			// a pending tx got mined, the next pending nonce moves forward
			wait = retryBackoff
		case isUnderpriced(sendErr) || isFeeTooLow(sendErr):
			if fees, err = a.fees.bump(ctx, fees); err != nil {
				return common.Hash{}, fmt.Errorf("bump fees: %w", err)
			}
			wait = replacementWaitHint
		default:
			return common.Hash{}, fmt.Errorf("send tx failed: %w", sendErr)
		}
		log.Debugw("retrying anchor tx", "attempt", attempt, "nonce", nonce, "error", sendErr.Error())
		select {
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return common.Hash{}, fmt.Errorf("exhausted attempts (%d) to send tx", sendMaxAttempts)
}

// Error classifiers
func isNonceTooLow(err error) bool {
	return containsErr(err, "nonce too low")
}

func isUnderpriced(err error) bool {
	return containsErr(err, "replacement transaction underpriced") ||
		containsErr(err, "transaction underpriced") ||
		containsErr(err, "tip too low")
}

func isFeeTooLow(err error) bool {
	return containsErr(err, "fee cap too low") ||
		containsErr(err, "max priority fee per gas higher than max fee per gas") ||
		containsErr(err, "max fee per gas less than block base fee")
}

func isAlreadyKnown(err error) bool {
	return containsErr(err, "already known")
}

func containsErr(err error, sub string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(sub))
}
