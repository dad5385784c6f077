package stellar

import (
	"context"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/support/render/problem"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/mock"
)

type mockHorizon struct {
	mock.Mock
}

func (m *mockHorizon) AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error) {
	args := m.Called(request)
	return args.Get(0).(hProtocol.Account), args.Error(1)
}

func (m *mockHorizon) SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error) {
	args := m.Called(tx)
	return args.Get(0).(hProtocol.Transaction), args.Error(1)
}

func (m *mockHorizon) Assets(request horizonclient.AssetRequest) (hProtocol.AssetsPage, error) {
	args := m.Called(request)
	return args.Get(0).(hProtocol.AssetsPage), args.Error(1)
}

func (m *mockHorizon) Offers(request horizonclient.OfferRequest) (hProtocol.OffersPage, error) {
	args := m.Called(request)
	return args.Get(0).(hProtocol.OffersPage), args.Error(1)
}

func (m *mockHorizon) StrictReceivePaths(request horizonclient.PathsRequest) (hProtocol.PathsPage, error) {
	args := m.Called(request)
	return args.Get(0).(hProtocol.PathsPage), args.Error(1)
}

func (m *mockHorizon) StreamEffects(ctx context.Context, request horizonclient.EffectRequest, handler horizonclient.EffectHandler) error {
	args := m.Called(ctx, request, handler)
	return args.Error(0)
}

// rejectionError fabricates the Horizon problem response for a failed
// transaction with the given result code.
func rejectionError(transactionCode string) error {
	return horizonclient.Error{
		Problem: problem.P{
			Title:  "Transaction Failed",
			Status: 400,
			Extras: map[string]interface{}{
				"result_codes": map[string]interface{}{
					"transaction": transactionCode,
				},
			},
		},
	}
}
