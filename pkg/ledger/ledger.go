// Package ledger anchors round outcomes on a Neo chain. Nothing in the
// coordinator waits on it: submission happens from a background worker and
// failures are only logged.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

const (
	KindNone = "none"
	KindNeo  = "neo"

	StatusSubmitted = "submitted"
	StatusSkipped   = "skipped"

	anchorMethod = "anchorRound"

	// Metrics travel as integers; the contract divides them back.
	accuracyScale = 10_000
	lossScale     = 1_000_000
)

var (
	ErrUnknownKind    = errors.New("unknown ledger kind")
	ErrMissingConfig  = errors.New("ledger endpoint, contract and wallet key are required")
	ErrInvalidMetrics = errors.New("metric can not be anchored")
)

// Tx is one round lifecycle event to anchor.
type Tx struct {
	Event        string
	ModelID      string
	RoundID      string
	RoundNumber  uint64
	Accuracy     float64
	Loss         float64
	WeightsCID   string
	Participants int
}

type Receipt struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	// ValidUntilBlock is the last block the transaction can be included in.
	ValidUntilBlock uint32 `json:"valid_until_block,omitempty"`
}

type Ledger interface {
	Submit(ctx context.Context, tx Tx) (Receipt, error)
}

type Config struct {
	Kind      string `env:"FEDLEDGER_LEDGER"           envDefault:"none"`
	Endpoint  string `env:"FEDLEDGER_LEDGER_ENDPOINT"`
	Contract  string `env:"FEDLEDGER_LEDGER_CONTRACT"`
	WalletWIF string `env:"FEDLEDGER_LEDGER_WALLET_WIF"`
}

// Actor is the part of the neo-go actor used to send contract calls.
type Actor interface {
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
}

func New(ctx context.Context, cfg Config) (Ledger, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindNone, "":
		return Noop{}, nil
	case KindNeo:
		return NewNeoLedger(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}

type NeoLedger struct {
	actor    Actor
	contract util.Uint160
}

func NewNeoLedger(ctx context.Context, cfg Config) (*NeoLedger, error) {
	if cfg.Endpoint == "" || cfg.Contract == "" || cfg.WalletWIF == "" {
		return nil, ErrMissingConfig
	}

	contract, err := util.Uint160DecodeStringLE(cfg.Contract)
	if err != nil {
		return nil, fmt.Errorf("decode contract hash: %w", err)
	}

	key, err := keys.NewPrivateKeyFromWIF(cfg.WalletWIF)
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}

	client, err := rpcclient.New(ctx, cfg.Endpoint, rpcclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}
	if err := client.Init(); err != nil {
		return nil, fmt.Errorf("init rpc client: %w", err)
	}

	act, err := actor.NewSimple(client, wallet.NewAccountFromPrivateKey(key))
	if err != nil {
		return nil, fmt.Errorf("init transaction sender: %w", err)
	}

	return NewNeoLedgerWithActor(act, contract), nil
}

func NewNeoLedgerWithActor(a Actor, contract util.Uint160) *NeoLedger {
	return &NeoLedger{actor: a, contract: contract}
}

func (l *NeoLedger) Submit(_ context.Context, tx Tx) (Receipt, error) {
	accuracy, err := scale(tx.Accuracy, accuracyScale)
	if err != nil {
		return Receipt{}, err
	}
	loss, err := scale(tx.Loss, lossScale)
	if err != nil {
		return Receipt{}, err
	}

	hash, vub, err := l.actor.SendCall(l.contract, anchorMethod,
		tx.Event, tx.ModelID, tx.RoundID, int64(tx.RoundNumber), accuracy, loss, tx.WeightsCID, int64(tx.Participants))
	if err != nil {
		return Receipt{}, fmt.Errorf("send %s: %w", anchorMethod, err)
	}

	return Receipt{Hash: hash.StringLE(), Status: StatusSubmitted, ValidUntilBlock: vub}, nil
}

func scale(v float64, factor float64) (int64, error) {
	s := math.Round(v * factor)
	if math.IsNaN(s) || math.IsInf(s, 0) || math.Abs(s) > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMetrics, v)
	}

	return int64(s), nil
}

// Noop accepts every transaction without anchoring it.
type Noop struct{}

func (Noop) Submit(context.Context, Tx) (Receipt, error) {
	return Receipt{Status: StatusSkipped}, nil
}
