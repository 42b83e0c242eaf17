// Package web3 anchors vote commitments and election closures on an
// EVM chain. Every record is a self-addressed EIP-1559 transaction whose
// calldata carries the encoded Payload; a local index maps elections to the
// transactions that closed them.
package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/vocdoni/votecommit/crypto/hash"
	"github.com/vocdoni/votecommit/db"
	"github.com/vocdoni/votecommit/ledger"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
	"github.com/vocdoni/votecommit/util"
)

const (
	// DefaultTimeout bounds a submission, from fee estimation to receipt.
	DefaultTimeout = 2 * time.Minute

	defaultPollInterval = time.Second
	// gas estimate margin, +20%
	gasMarginNum = 12
	gasMarginDen = 10
)

var (
	voteIndexPrefix    = []byte("v/")
	closureIndexPrefix = []byte("c/")
)

// AnchorConfig configures an Anchor.
type AnchorConfig struct {
	// PrivateKey is the hex encoded secp256k1 key that signs and pays for
	// the anchoring transactions.
	PrivateKey string
	// ChainID, if not zero, must match the chain id reported by the client.
	ChainID uint64
	// Timeout bounds each submission. Zero means DefaultTimeout.
	Timeout time.Duration
	// PollInterval is the receipt polling period. Zero means one second.
	PollInterval time.Duration
	// MaxFeeCapGwei bounds maxFeePerGas of every anchoring transaction.
	// Zero means unbounded.
	MaxFeeCapGwei uint64
}

// Anchor is a ledger.Ledger backed by an EVM chain.
type Anchor struct {
	cli          Client
	key          *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	index        db.Database
	timeout      time.Duration
	pollInterval time.Duration
	fees         feePolicy

	sendMu sync.Mutex // one transaction in flight keeps nonces ordered
}

var _ ledger.Ledger = (*Anchor)(nil)

// NewAnchor returns an Anchor that sends through cli and keeps its
// transaction index in index, which should be a dedicated namespace.
func NewAnchor(ctx context.Context, cli Client, index db.Database, cfg AnchorConfig) (*Anchor, error) {
	key, err := crypto.HexToECDSA(util.TrimHex(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return nil, fmt.Errorf("chain id mismatch: expected %d, endpoint reports %d", cfg.ChainID, chainID.Uint64())
	}
	a := &Anchor{
		cli:          cli,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		index:        index,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		fees:         feePolicy{cli: cli},
	}
	if cfg.MaxFeeCapGwei > 0 {
		a.fees.maxFeeCap = new(big.Int).Mul(new(big.Int).SetUint64(cfg.MaxFeeCapGwei), big.NewInt(params.GWei))
	}
	if a.timeout == 0 {
		a.timeout = DefaultTimeout
	}
	if a.pollInterval == 0 {
		a.pollInterval = defaultPollInterval
	}
	log.Infow("web3 anchor initialized", "chainID", chainID.Uint64(), "account", a.address.Hex())
	return a, nil
}

// Address returns the account that sends the anchoring transactions.
func (a *Anchor) Address() common.Address {
	return a.address
}

// SubmitVoteCommitment anchors the tags of one vote.
func (a *Anchor) SubmitVoteCommitment(ctx context.Context, electionID, voterTag, ballotTag string) error {
	voter, err := hash.DigestFromHex(voterTag)
	if err != nil {
		return fmt.Errorf("%w: voter tag: %v", types.ErrInvalidInput, err)
	}
	ballot, err := hash.DigestFromHex(ballotTag)
	if err != nil {
		return fmt.Errorf("%w: ballot tag: %v", types.ErrInvalidInput, err)
	}
	txHash, err := a.submit(ctx, &Payload{Kind: KindVote, ElectionID: electionID, First: voter, Second: ballot})
	if err != nil {
		return err
	}
	if err := a.setIndex(voteIndexPrefix, electionID+"/"+ballotTag, txHash); err != nil {
		log.Warnw("failed to index vote commitment", "electionId", electionID, "tx", txHash.Hex(), "error", err)
	}
	return nil
}

// SubmitClosure anchors the closure of an election. An election can be
// closed only once.
func (a *Anchor) SubmitClosure(ctx context.Context, electionID string, root, resultsDigest hash.Digest) error {
	if _, err := a.index.Get(indexKey(closureIndexPrefix, electionID)); err == nil {
		return fmt.Errorf("%w: closure of %s already anchored", types.ErrAlreadyClosed, electionID)
	}
	txHash, err := a.submit(ctx, &Payload{Kind: KindClosure, ElectionID: electionID, First: root, Second: resultsDigest})
	if err != nil {
		return err
	}
	if err := a.setIndex(closureIndexPrefix, electionID, txHash); err != nil {
		return fmt.Errorf("%w: index closure tx %s: %v", types.ErrLedger, txHash.Hex(), err)
	}
	log.Infow("election closure anchored", "electionId", electionID, "tx", txHash.Hex(), "root", root.Hex())
	return nil
}

// QueryCommittedRoot fetches the closing transaction of an election and
// returns the root it carries.
func (a *Anchor) QueryCommittedRoot(ctx context.Context, electionID string) (*hash.Digest, error) {
	raw, err := a.index.Get(indexKey(closureIndexPrefix, electionID))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read closure index: %w", err)
	}
	txHash := common.BytesToHash(raw)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	tx, _, err := a.cli.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch tx %s: %v", types.ErrLedger, txHash.Hex(), err)
	}
	p, err := DecodePayload(tx.Data())
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", txHash.Hex(), err)
	}
	if p.Kind != KindClosure || p.ElectionID != electionID {
		return nil, fmt.Errorf("tx %s: %w: not the closure of %s", txHash.Hex(), ErrInvalidPayload, electionID)
	}
	root := p.First
	return &root, nil
}

func indexKey(prefix []byte, key string) []byte {
	return append(append([]byte{}, prefix...), key...)
}

func (a *Anchor) setIndex(prefix []byte, key string, txHash common.Hash) error {
	tx := a.index.WriteTx()
	defer tx.Discard()
	if err := tx.Set(indexKey(prefix, key), txHash.Bytes()); err != nil {
		return err
	}
	return tx.Commit()
}

// submit sends the payload and waits until it is mined. Every failure wraps
// types.ErrLedger.
func (a *Anchor) submit(ctx context.Context, p *Payload) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	txHash, err := a.send(ctx, p.Encode())
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
	if err := a.waitReceipt(ctx, txHash); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", types.ErrLedger, err)
	}
	log.Debugw("payload anchored", "kind", p.Kind, "electionId", p.ElectionID, "tx", txHash.Hex(), "took", log.Since(start))
	return txHash, nil
}

// waitReceipt polls for the receipt of txHash until it is found or ctx ends.
func (a *Anchor) waitReceipt(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := a.cli.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("tx %s reverted", txHash.Hex())
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			return fmt.Errorf("receipt of tx %s: %w", txHash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for tx %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
