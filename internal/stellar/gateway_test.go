package stellar

import (
	"context"
	"errors"
	"testing"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

func TestNewGateway_RejectsBadFundingSeed(t *testing.T) {
	_, err := NewGateway(testLogger(), new(mockHorizon), &config.StellarConfig{
		NetworkPassphrase: "Test SDF Network ; September 2015",
		FundingSeed:       "not-a-seed",
		BaseBalance:       "30",
	})

	require.Error(t, err)
	assert.Equal(t, shared.FailureConfiguration, shared.KindOf(err))
}

func TestGateway_CreateAccount(t *testing.T) {
	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: gw.FundingAddress(),
		Sequence:  100,
	}, nil)

	var submitted *txnbuild.Transaction
	client.On("SubmitTransaction", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*txnbuild.Transaction)
	}).Return(hProtocol.Transaction{Hash: "cc33"}, nil)

	kp, err := gw.CreateAccount(context.Background())
	require.NoError(t, err)
	require.NotNil(t, kp)

	require.NotNil(t, submitted)
	create, ok := submitted.Operations()[0].(*txnbuild.CreateAccount)
	require.True(t, ok)
	assert.Equal(t, kp.Address(), create.Destination)
	assert.Equal(t, "30.0000000", create.Amount)
}

func TestGateway_SetTrustLimit_ClampsToBalance(t *testing.T) {
	owner := keypair.MustRandom()
	issuer := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Sequence:  8,
		Balances: []hProtocol.Balance{
			{
				Balance: "50.0000000",
				Limit:   "50.0000000",
				Asset:   base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: issuer.Address()},
			},
		},
	}, nil)

	var submitted *txnbuild.Transaction
	client.On("SubmitTransaction", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*txnbuild.Transaction)
	}).Return(hProtocol.Transaction{Hash: "dd44"}, nil)

	// requested 20 but the account already holds 50
	effective, err := gw.SetTrustLimit(context.Background(), owner, "XXX", issuer.Address(), d("20"))
	require.NoError(t, err)
	assert.True(t, d("50").Equal(effective), "limit must be clamped up to the held balance")

	trust := submitted.Operations()[0].(*txnbuild.ChangeTrust)
	assert.Equal(t, "50.0000000", trust.Limit)
}

func TestGateway_SetTrustLimit_HonorsRequestAboveBalance(t *testing.T) {
	owner := keypair.MustRandom()
	issuer := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Sequence:  8,
		Balances: []hProtocol.Balance{
			{
				Balance: "10.0000000",
				Limit:   "10.0000000",
				Asset:   base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: issuer.Address()},
			},
		},
	}, nil)
	client.On("SubmitTransaction", mock.Anything).Return(hProtocol.Transaction{Hash: "ee55"}, nil)

	effective, err := gw.SetTrustLimit(context.Background(), owner, "XXX", issuer.Address(), d("1000"))
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(effective))
}

func TestGateway_Pay_CarriesSubAccountMemo(t *testing.T) {
	owner := keypair.MustRandom()
	issuer := keypair.MustRandom()
	targetKey := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Sequence:  3,
	}, nil)

	var submitted *txnbuild.Transaction
	client.On("SubmitTransaction", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*txnbuild.Transaction)
	}).Return(hProtocol.Transaction{Hash: "ff66"}, nil)

	target := bridge.AccountID{Address: targetKey.Address(), SubAccount: "dept-7"}
	hash, err := gw.Pay(context.Background(), owner, target, d("12.5"), "XXX", issuer.Address())
	require.NoError(t, err)
	assert.Equal(t, "ff66", hash)

	memo, ok := submitted.Memo().(txnbuild.MemoText)
	require.True(t, ok, "sub-account payments must carry a text memo")
	assert.Equal(t, "dept-7", string(memo))

	payment := submitted.Operations()[0].(*txnbuild.Payment)
	assert.Equal(t, targetKey.Address(), payment.Destination)
	assert.Equal(t, "12.5000000", payment.Amount)
}

func TestGateway_Pay_RejectionIsPaymentFailure(t *testing.T) {
	owner := keypair.MustRandom()
	issuer := keypair.MustRandom()
	targetKey := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Sequence:  3,
	}, nil)
	client.On("SubmitTransaction", mock.Anything).Return(hProtocol.Transaction{}, rejectionError("tx_failed"))

	_, err := gw.Pay(context.Background(), owner, bridge.NewAccountID(targetKey.Address()), d("1"), "XXX", issuer.Address())
	require.Error(t, err)

	assert.Equal(t, shared.FailurePayment, shared.KindOf(err))

	var be *shared.BridgeError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Diagnostic, "tx_failed")
}

func TestGateway_Pay_TransportFailureIsConfiguration(t *testing.T) {
	owner := keypair.MustRandom()
	targetKey := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{}, errors.New("connection refused"))

	_, err := gw.Pay(context.Background(), owner, bridge.NewAccountID(targetKey.Address()), d("1"), "XXX", keypair.MustRandom().Address())
	require.Error(t, err)
	assert.Equal(t, shared.FailureConfiguration, shared.KindOf(err))
}

func TestGateway_RemoveAccount_ReturnsAssetsAndMerges(t *testing.T) {
	owner := keypair.MustRandom()
	issuer := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Sequence:  4,
		Balances: []hProtocol.Balance{
			{Balance: "29.0000000", Asset: base.Asset{Type: "native"}},
			{
				Balance: "3.0000000",
				Limit:   "100.0000000",
				Asset:   base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: issuer.Address()},
			},
		},
	}, nil)

	var submitted *txnbuild.Transaction
	client.On("SubmitTransaction", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*txnbuild.Transaction)
	}).Return(hProtocol.Transaction{Hash: "0077"}, nil)

	require.NoError(t, gw.RemoveAccount(context.Background(), owner))

	ops := submitted.Operations()
	require.Len(t, ops, 3)

	payment := ops[0].(*txnbuild.Payment)
	assert.Equal(t, issuer.Address(), payment.Destination, "held assets go back to their issuer")
	assert.Equal(t, "3.0000000", payment.Amount)

	trust := ops[1].(*txnbuild.ChangeTrust)
	assert.Equal(t, "0", trust.Limit)

	merge := ops[2].(*txnbuild.AccountMerge)
	assert.Equal(t, gw.FundingAddress(), merge.Destination)
}

func TestGateway_GetBalance_SumsAcrossIssuers(t *testing.T) {
	owner := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: owner.Address(),
		Balances: []hProtocol.Balance{
			{Balance: "100.0000000", Asset: base.Asset{Type: "native"}},
			{Balance: "5.5000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: keypair.MustRandom().Address()}},
			{Balance: "4.5000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: keypair.MustRandom().Address()}},
			{Balance: "9.0000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "YYY", Issuer: keypair.MustRandom().Address()}},
		},
	}, nil)

	total, err := gw.GetBalance(context.Background(), owner.Address(), "XXX")
	require.NoError(t, err)
	assert.True(t, d("10").Equal(total), "got %s", total)
}

func assetsPage(records ...hProtocol.AssetStat) hProtocol.AssetsPage {
	var page hProtocol.AssetsPage
	page.Embedded.Records = records
	return page
}

func TestGateway_RemoveVaultAccount_RefusesWhileAssetCirculates(t *testing.T) {
	vault := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	// the vault itself holds nothing, so the ledger would happily merge it;
	// the outstanding supply is only visible on the asset records
	stat := hProtocol.AssetStat{Amount: "25.0000000"}
	stat.Asset = base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: vault.Address()}
	client.On("Assets", horizonclient.AssetRequest{ForAssetIssuer: vault.Address()}).
		Return(assetsPage(stat), nil)

	err := gw.RemoveVaultAccount(context.Background(), vault)
	require.Error(t, err)
	assert.Equal(t, shared.FailureAccountCreation, shared.KindOf(err))

	var be *shared.BridgeError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Diagnostic, "still in circulation")

	client.AssertNotCalled(t, "SubmitTransaction", mock.Anything)
}

func TestGateway_RemoveVaultAccount_MergesWhenNothingOutstanding(t *testing.T) {
	vault := keypair.MustRandom()

	client := new(mockHorizon)
	gw := testGateway(t, client)

	redeemed := hProtocol.AssetStat{Amount: "0.0000000"}
	redeemed.Asset = base.Asset{Type: "credit_alphanum4", Code: "XXX", Issuer: vault.Address()}
	client.On("Assets", horizonclient.AssetRequest{ForAssetIssuer: vault.Address()}).
		Return(assetsPage(redeemed), nil)
	client.On("AccountDetail", mock.Anything).Return(hProtocol.Account{
		AccountID: vault.Address(),
		Sequence:  9,
		Balances: []hProtocol.Balance{
			{Balance: "29.0000000", Asset: base.Asset{Type: "native"}},
		},
	}, nil)

	var submitted *txnbuild.Transaction
	client.On("SubmitTransaction", mock.Anything).Run(func(args mock.Arguments) {
		submitted = args.Get(0).(*txnbuild.Transaction)
	}).Return(hProtocol.Transaction{Hash: "1188"}, nil)

	require.NoError(t, gw.RemoveVaultAccount(context.Background(), vault))

	ops := submitted.Operations()
	require.Len(t, ops, 1)
	merge := ops[0].(*txnbuild.AccountMerge)
	assert.Equal(t, gw.FundingAddress(), merge.Destination)
}
