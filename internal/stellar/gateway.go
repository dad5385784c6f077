package stellar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
)

// submission timebounds, generous enough to survive a slow Horizon
const transactionTimeout = 300

// Gateway executes ledger operations against Horizon. Submissions for the
// same source account are serialized through the sequencer cache so the
// cached sequence number stays consistent under concurrent callers.
type Gateway struct {
	client      HorizonClient
	sequencers  *SequencerCache
	passphrase  string
	funding     *keypair.Full
	baseBalance decimal.Decimal
	logger      *slog.Logger
}

// NewGateway validates the funding credentials and returns a ready gateway.
// An unusable funding seed or base balance is a configuration failure.
func NewGateway(logger *slog.Logger, client HorizonClient, cfg *config.StellarConfig) (*Gateway, error) {
	funding, err := keypair.ParseFull(cfg.FundingSeed)
	if err != nil {
		return nil, shared.NewConfigurationError("gateway.New", fmt.Errorf("invalid funding seed: %w", err))
	}

	baseBalance, err := decimal.NewFromString(cfg.BaseBalance)
	if err != nil {
		return nil, shared.NewConfigurationError("gateway.New", fmt.Errorf("invalid base balance %q: %w", cfg.BaseBalance, err))
	}

	return &Gateway{
		client:      client,
		sequencers:  NewSequencerCache(),
		passphrase:  cfg.NetworkPassphrase,
		funding:     funding,
		baseBalance: baseBalance,
		logger:      logger,
	}, nil
}

// FundingAddress returns the public address of the funding account.
func (g *Gateway) FundingAddress() string {
	return g.funding.Address()
}

// submit builds, signs, and submits one transaction from source, holding the
// source's sequencer for the duration. Returns the ledger transaction hash.
func (g *Gateway) submit(source string, signers []*keypair.Full, ops []txnbuild.Operation, memo txnbuild.Memo, kind shared.FailureKind, op string) (string, error) {
	var hash string

	err := g.sequencers.Submit(source,
		func() (int64, error) {
			account, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: source})
			if err != nil {
				return 0, classify(kind, op, err)
			}
			return account.Sequence, nil
		},
		func(sequence int64) error {
			sourceAccount := txnbuild.NewSimpleAccount(source, sequence)
			tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
				SourceAccount:        &sourceAccount,
				IncrementSequenceNum: true,
				Operations:           ops,
				BaseFee:              txnbuild.MinBaseFee,
				Memo:                 memo,
				Preconditions: txnbuild.Preconditions{
					TimeBounds: txnbuild.NewTimeout(transactionTimeout),
				},
			})
			if err != nil {
				return shared.NewConfigurationError(op, err)
			}

			tx, err = tx.Sign(g.passphrase, signers...)
			if err != nil {
				return shared.NewConfigurationError(op, err)
			}

			resp, err := g.client.SubmitTransaction(tx)
			if err != nil {
				return classify(kind, op, err)
			}
			hash = resp.Hash
			return nil
		},
	)
	if err != nil {
		g.logger.Error("Ledger submission failed",
			"op", op,
			"source", source,
			"error", err)
		return "", err
	}

	g.logger.Info("Ledger submission accepted",
		"op", op,
		"source", source,
		"hash", hash)
	return hash, nil
}

// CreateAccount creates a fresh ledger account funded with the base balance
// and returns its key pair. The caller persists the pair before any further
// use; a lost pair means a lost account.
func (g *Gateway) CreateAccount(ctx context.Context) (*keypair.Full, error) {
	return g.createFunded(ctx, "gateway.CreateAccount")
}

// CreateVaultAccount creates the liquidity vault account for a tenant. Same
// mechanics as CreateAccount; kept separate so call sites read as intended.
func (g *Gateway) CreateVaultAccount(ctx context.Context) (*keypair.Full, error) {
	return g.createFunded(ctx, "gateway.CreateVaultAccount")
}

func (g *Gateway) createFunded(_ context.Context, op string) (*keypair.Full, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, shared.NewConfigurationError(op, err)
	}

	ops := []txnbuild.Operation{
		&txnbuild.CreateAccount{
			Destination: kp.Address(),
			Amount:      amountString(g.baseBalance),
		},
	}

	if _, err := g.submit(g.funding.Address(), []*keypair.Full{g.funding}, ops, nil, shared.FailureAccountCreation, op); err != nil {
		return nil, err
	}
	return kp, nil
}

// RemoveAccount returns the account's remaining credit balances to their
// issuers, drops its trustlines, and merges the native balance back into the
// funding account. On success the account no longer exists on the ledger.
func (g *Gateway) RemoveAccount(ctx context.Context, owner *keypair.Full) error {
	const op = "gateway.RemoveAccount"

	account, err := g.accountDetail(owner.Address(), shared.FailureAccountCreation, op)
	if err != nil {
		return err
	}

	var ops []txnbuild.Operation
	for _, b := range account.Balances {
		if b.Asset.Type == nativeAssetType {
			continue
		}
		balance, err := parseAmount(op, b.Balance)
		if err != nil {
			return err
		}
		if balance.IsPositive() {
			// returning an asset to its issuer burns it
			ops = append(ops, &txnbuild.Payment{
				Destination: b.Asset.Issuer,
				Amount:      amountString(balance),
				Asset:       creditAsset(b.Asset.Code, b.Asset.Issuer),
			})
		}
		ops = append(ops, &txnbuild.ChangeTrust{
			Line:  txnbuild.ChangeTrustAssetWrapper{Asset: creditAsset(b.Asset.Code, b.Asset.Issuer)},
			Limit: "0",
		})
	}
	ops = append(ops, &txnbuild.AccountMerge{
		Destination: g.funding.Address(),
	})

	if _, err := g.submit(owner.Address(), []*keypair.Full{owner}, ops, nil, shared.FailureAccountCreation, op); err != nil {
		return err
	}

	g.sequencers.Evict(owner.Address())
	return nil
}

// RemoveVaultAccount merges a tenant's vault back into the funding account,
// refusing while any of the vault's issued assets remain in circulation. The
// ledger itself would accept the merge: an issuer carries no trustlines for
// its own asset, so the outstanding supply lives on other accounts and must
// be checked explicitly before the issuer disappears.
func (g *Gateway) RemoveVaultAccount(ctx context.Context, owner *keypair.Full) error {
	const op = "gateway.RemoveVaultAccount"

	outstanding, err := g.issuedSupply(owner.Address(), op)
	if err != nil {
		return err
	}
	if outstanding.IsPositive() {
		return shared.NewOperationError(shared.FailureAccountCreation, op,
			"vault asset still in circulation: "+outstanding.String()+" outstanding", nil)
	}

	return g.RemoveAccount(ctx, owner)
}

// issuedSupply sums the outstanding amount of every asset the account issues.
func (g *Gateway) issuedSupply(issuer, op string) (decimal.Decimal, error) {
	page, err := g.client.Assets(horizonclient.AssetRequest{ForAssetIssuer: issuer})
	if err != nil {
		return decimal.Zero, classify(shared.FailureAccountCreation, op, err)
	}

	total := decimal.Zero
	for _, record := range page.Embedded.Records {
		amount, err := parseAmount(op, record.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}

// SetTrustLimit establishes or resizes the owner's trustline for an asset.
// The requested maximum is clamped upward to the current balance: the ledger
// rejects a limit below what the account already holds, and shrinking trust
// must never strand funds. Returns the limit that was actually set.
func (g *Gateway) SetTrustLimit(ctx context.Context, owner *keypair.Full, code, issuer string, requested decimal.Decimal) (decimal.Decimal, error) {
	const op = "gateway.SetTrustLimit"

	balance, err := g.GetBalanceByIssuer(ctx, owner.Address(), code, issuer)
	if err != nil {
		return decimal.Zero, err
	}

	effective := requested
	if balance.GreaterThan(effective) {
		effective = balance
		g.logger.Warn("Requested trust limit below current balance, clamping",
			"account", owner.Address(),
			"asset", code,
			"requested", requested.String(),
			"effective", effective.String())
	}

	ops := []txnbuild.Operation{
		&txnbuild.ChangeTrust{
			Line:  txnbuild.ChangeTrustAssetWrapper{Asset: creditAsset(code, issuer)},
			Limit: amountString(effective),
		},
	}

	if _, err := g.submit(owner.Address(), []*keypair.Full{owner}, ops, nil, shared.FailureTrustline, op); err != nil {
		return decimal.Zero, err
	}
	return effective, nil
}

// Pay submits a direct payment to the target. A sub-account token on the
// target travels as the transaction memo. Returns the transaction hash.
func (g *Gateway) Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code, issuer string) (string, error) {
	const op = "gateway.Pay"

	var asset txnbuild.Asset = creditAsset(code, issuer)
	if issuer == "" {
		asset = txnbuild.NativeAsset{}
	}

	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: target.Address,
			Amount:      amountString(amount),
			Asset:       asset,
		},
	}

	return g.submit(owner.Address(), []*keypair.Full{owner}, ops, memoFor(target), shared.FailurePayment, op)
}

// SubmitPathPayment executes a previously planned cross-asset payment. The
// plan fixes the source asset, the conversion path, and the send ceiling.
func (g *Gateway) SubmitPathPayment(ctx context.Context, owner *keypair.Full, target bridge.AccountID, plan *PathPlan) (string, error) {
	const op = "gateway.SubmitPathPayment"

	ops := []txnbuild.Operation{
		&txnbuild.PathPaymentStrictReceive{
			SendAsset:   creditAsset(plan.SendCode, plan.SendIssuer),
			SendMax:     amountString(plan.SendMax),
			Destination: target.Address,
			DestAsset:   creditAsset(plan.DestCode, plan.DestIssuer),
			DestAmount:  amountString(plan.DestAmount),
			Path:        plan.Hops,
		},
	}

	return g.submit(owner.Address(), []*keypair.Full{owner}, ops, memoFor(target), shared.FailurePayment, op)
}

// SubmitOfferOperations submits a batch of offer adjustments from the owner
// account in a single transaction.
func (g *Gateway) SubmitOfferOperations(ctx context.Context, owner *keypair.Full, ops []txnbuild.Operation) (string, error) {
	return g.submit(owner.Address(), []*keypair.Full{owner}, ops, nil, shared.FailureOffer, "gateway.SubmitOfferOperations")
}

func memoFor(target bridge.AccountID) txnbuild.Memo {
	if !target.HasSubAccount() {
		return nil
	}
	return txnbuild.MemoText(target.SubAccount)
}

func (g *Gateway) accountDetail(address string, kind shared.FailureKind, op string) (hProtocol.Account, error) {
	account, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		return hProtocol.Account{}, classify(kind, op, err)
	}
	return account, nil
}

// Balances returns the raw balance list of a ledger account.
func (g *Gateway) Balances(ctx context.Context, address string) ([]hProtocol.Balance, error) {
	account, err := g.accountDetail(address, shared.FailureConfiguration, "gateway.Balances")
	if err != nil {
		return nil, err
	}
	return account.Balances, nil
}

// GetBalance sums the account's holdings of an asset code across all issuers.
func (g *Gateway) GetBalance(ctx context.Context, address, code string) (decimal.Decimal, error) {
	const op = "gateway.GetBalance"

	balances, err := g.Balances(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, b := range balances {
		if b.Asset.Type == nativeAssetType || b.Asset.Code != code {
			continue
		}
		amount, err := parseAmount(op, b.Balance)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}

// GetBalanceByIssuer returns the account's holding of one concrete asset.
// Zero when no trustline exists.
func (g *Gateway) GetBalanceByIssuer(ctx context.Context, address, code, issuer string) (decimal.Decimal, error) {
	const op = "gateway.GetBalanceByIssuer"

	balances, err := g.Balances(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}

	for _, b := range balances {
		if b.Asset.Type == nativeAssetType {
			continue
		}
		if b.Asset.Code == code && b.Asset.Issuer == issuer {
			return parseAmount(op, b.Balance)
		}
	}
	return decimal.Zero, nil
}

// TrustLimit returns the account's trustline limit for one concrete asset.
// Zero when no trustline exists.
func (g *Gateway) TrustLimit(ctx context.Context, address, code, issuer string) (decimal.Decimal, error) {
	const op = "gateway.TrustLimit"

	balances, err := g.Balances(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}

	for _, b := range balances {
		if b.Asset.Type == nativeAssetType {
			continue
		}
		if b.Asset.Code == code && b.Asset.Issuer == issuer {
			return parseAmount(op, b.Limit)
		}
	}
	return decimal.Zero, nil
}
