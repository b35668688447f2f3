package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// Anchor publishes match commitments on-chain. Both calls are best-effort:
// the match result stands whether or not the anchor transaction lands.
type Anchor interface {
	OpenSession(ctx context.Context, m *domain.Match) (string, error)
	CloseSession(ctx context.Context, m *domain.Match) (string, error)
}

// anchor messages carry a symbolic amount; the payload is the comment cell
const anchorAmountNano = 10_000_000 // 0.01 TON

// TonAnchor sends anchor transactions from a server-held wallet to the
// anchoring contract address.
type TonAnchor struct {
	api    *ton.APIClient
	wallet *wallet.Wallet
	dst    *address.Address
}

// NewTonAnchor connects to the lite servers and derives the wallet from a
// 24-word mnemonic. network is "mainnet" or "testnet".
func NewTonAnchor(mnemonic, network, anchorAddress string) (*TonAnchor, error) {
	configURL := "https://ton.org/global.config.json"
	networkID := int32(-239)
	if network == "testnet" {
		configURL = "https://ton.org/testnet-global.config.json"
		networkID = -3
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(context.Background(), configURL); err != nil {
		return nil, fmt.Errorf("connect to lite servers: %w", err)
	}
	api := ton.NewAPIClient(pool)

	words := strings.Fields(strings.TrimSpace(mnemonic))
	if len(words) != 24 {
		return nil, fmt.Errorf("invalid mnemonic: expected 24 words, got %d", len(words))
	}
	w, err := wallet.FromSeed(api, words, wallet.ConfigV5R1Final{
		NetworkGlobalID: networkID,
		Workchain:       0,
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet from seed: %w", err)
	}

	dst, err := address.ParseAddr(anchorAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor address: %w", err)
	}

	return &TonAnchor{api: api, wallet: w, dst: dst}, nil
}

// OpenSession anchors both board commitments when battle begins.
func (a *TonAnchor) OpenSession(ctx context.Context, m *domain.Match) (string, error) {
	comment := fmt.Sprintf("bs:open:%s:%s:%s", m.ID, m.Player1BoardHash, m.Player2BoardHash)
	return a.send(ctx, comment)
}

// CloseSession anchors the final outcome.
func (a *TonAnchor) CloseSession(ctx context.Context, m *domain.Match) (string, error) {
	comment := fmt.Sprintf("bs:close:%s:%s:%s:%d", m.ID, m.Winner, m.EndReason, m.TurnNumber)
	return a.send(ctx, comment)
}

func (a *TonAnchor) send(ctx context.Context, comment string) (string, error) {
	body := cell.BeginCell().
		MustStoreUInt(0, 32). // op = 0, text comment
		MustStoreStringSnake(comment).
		EndCell()

	msg := &wallet.Message{
		Mode: wallet.PayGasSeparately + wallet.IgnoreErrors,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      false,
			DstAddr:     a.dst,
			Amount:      tlb.FromNanoTONU(anchorAmountNano),
			Body:        body,
		},
	}

	tx, _, err := a.wallet.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send anchor transaction: %w", err)
	}
	return fmt.Sprintf("%x", tx.Hash), nil
}

// NopAnchor satisfies Anchor when no wallet is configured.
type NopAnchor struct{}

func (NopAnchor) OpenSession(context.Context, *domain.Match) (string, error)  { return "", nil }
func (NopAnchor) CloseSession(context.Context, *domain.Match) (string, error) { return "", nil }
