package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/cursor"
	"github.com/stellar-tenant-bridge/internal/domain/journal"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

type MockBridgeRepo struct {
	mock.Mock
}

func (m *MockBridgeRepo) Create(ctx context.Context, b *bridge.Bridge) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBridgeRepo) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bridge.Bridge), args.Error(1)
}

func (m *MockBridgeRepo) GetByAccountAddress(ctx context.Context, address string) (*bridge.Bridge, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bridge.Bridge), args.Error(1)
}

func (m *MockBridgeRepo) ListAccountAddresses(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBridgeRepo) Update(ctx context.Context, b *bridge.Bridge) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBridgeRepo) Delete(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockBridgeRepo) WithTx(tx pgx.Tx) bridge.Repository {
	return m
}

type MockOrphanRepo struct {
	mock.Mock
}

func (m *MockOrphanRepo) Create(ctx context.Context, orphan *bridge.OrphanedAccount) error {
	args := m.Called(ctx, orphan)
	return args.Error(0)
}

func (m *MockOrphanRepo) List(ctx context.Context) ([]*bridge.OrphanedAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bridge.OrphanedAccount), args.Error(1)
}

type MockCursorRepo struct {
	mock.Mock
}

func (m *MockCursorRepo) InsertOnce(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockCursorRepo) MarkProcessed(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockCursorRepo) LatestProcessed(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockCursorRepo) WithTx(tx pgx.Tx) cursor.Repository {
	return m
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateAccount(ctx context.Context) (*keypair.Full, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keypair.Full), args.Error(1)
}

func (m *MockLedger) CreateVaultAccount(ctx context.Context) (*keypair.Full, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keypair.Full), args.Error(1)
}

func (m *MockLedger) RemoveAccount(ctx context.Context, owner *keypair.Full) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *MockLedger) RemoveVaultAccount(ctx context.Context, owner *keypair.Full) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *MockLedger) SetTrustLimit(ctx context.Context, owner *keypair.Full, code, issuer string, requested decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, owner, code, issuer, requested)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code, issuer string) (string, error) {
	args := m.Called(ctx, owner, target, amount, code, issuer)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) Balances(ctx context.Context, address string) ([]hProtocol.Balance, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hProtocol.Balance), args.Error(1)
}

func (m *MockLedger) GetBalanceByIssuer(ctx context.Context, address, code, issuer string) (decimal.Decimal, error) {
	args := m.Called(ctx, address, code, issuer)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) TrustLimit(ctx context.Context, address, code, issuer string) (decimal.Decimal, error) {
	args := m.Called(ctx, address, code, issuer)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockPaymentSender struct {
	mock.Mock
}

func (m *MockPaymentSender) Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code string) (string, error) {
	args := m.Called(ctx, owner, target, amount, code)
	return args.String(0), args.Error(1)
}

type MockJournalRepo struct {
	mock.Mock
}

func (m *MockJournalRepo) Create(ctx context.Context, record *journal.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockJournalRepo) GetByAccount(ctx context.Context, account string, limit, offset int) ([]*journal.Record, error) {
	args := m.Called(ctx, account, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Record), args.Error(1)
}

func (m *MockJournalRepo) CountByAccount(ctx context.Context, account string) (int64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(int64), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func newBridgeService(bridges *MockBridgeRepo, orphans *MockOrphanRepo, cursors *MockCursorRepo, ledger *MockLedger) BridgeService {
	return NewBridgeService(testLogger(), bridges, orphans, cursors, ledger)
}

func TestBridgeService_CreateBridge(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), ledger)

		tenantID := uuid.New()
		kp := keypair.MustRandom()

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(nil, bridge.ErrBridgeNotFound{TenantID: tenantID})
		ledger.On("CreateAccount", mock.Anything).Return(kp, nil)
		bridges.On("Create", mock.Anything, mock.MatchedBy(func(b *bridge.Bridge) bool {
			return b.TenantID == tenantID && b.AccountAddress == kp.Address()
		})).Return(nil)

		b, err := svc.CreateBridge(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, kp.Address(), b.AccountAddress)
		assert.False(t, b.HasVault())
		bridges.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})

	t.Run("DuplicateTenantSkipsLedger", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), ledger)

		tenantID := uuid.New()
		existing := bridge.NewBridge(tenantID, keypair.MustRandom())
		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(existing, nil)

		_, err := svc.CreateBridge(context.Background(), tenantID)
		require.Error(t, err)
		var duplicateErr bridge.ErrDuplicateBridge
		assert.ErrorAs(t, err, &duplicateErr)
		ledger.AssertNotCalled(t, "CreateAccount", mock.Anything)
	})

	t.Run("PersistenceFailureOrphansAccount", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		orphans := new(MockOrphanRepo)
		cursors := new(MockCursorRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, orphans, cursors, ledger)

		tenantID := uuid.New()
		kp := keypair.MustRandom()

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(nil, bridge.ErrBridgeNotFound{TenantID: tenantID})
		ledger.On("CreateAccount", mock.Anything).Return(kp, nil)
		bridges.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		cursors.On("LatestProcessed", mock.Anything).Return("1234-5", nil)
		orphans.On("Create", mock.Anything, mock.MatchedBy(func(o *bridge.OrphanedAccount) bool {
			return o.Address == kp.Address() && !o.VaultAccount && o.LastCursor == "1234-5"
		})).Return(nil)

		_, err := svc.CreateBridge(context.Background(), tenantID)
		require.Error(t, err)
		orphans.AssertExpectations(t)
	})
}

func TestBridgeService_AttachVault(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), ledger)

		tenantID := uuid.New()
		b := bridge.NewBridge(tenantID, keypair.MustRandom())
		vaultKP := keypair.MustRandom()

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(b, nil)
		ledger.On("CreateVaultAccount", mock.Anything).Return(vaultKP, nil)
		bridges.On("Update", mock.Anything, b).Return(nil)

		updated, err := svc.AttachVault(context.Background(), tenantID)
		require.NoError(t, err)
		require.True(t, updated.HasVault())
		assert.Equal(t, vaultKP.Address(), *updated.VaultAddress)
	})

	t.Run("AlreadyAttachedSkipsLedger", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), ledger)

		tenantID := uuid.New()
		b := bridge.NewBridge(tenantID, keypair.MustRandom())
		require.NoError(t, b.AttachVault(keypair.MustRandom()))

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(b, nil)

		_, err := svc.AttachVault(context.Background(), tenantID)
		assert.ErrorIs(t, err, bridge.ErrVaultAlreadyAttached)
		ledger.AssertNotCalled(t, "CreateVaultAccount", mock.Anything)
	})
}

func TestBridgeService_DeleteBridge(t *testing.T) {
	t.Run("RemovesVaultAndPrimary", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), ledger)

		tenantID := uuid.New()
		b := bridge.NewBridge(tenantID, keypair.MustRandom())
		require.NoError(t, b.AttachVault(keypair.MustRandom()))

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(b, nil)
		ledger.On("RemoveVaultAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == *b.VaultAddress
		})).Return(nil)
		ledger.On("RemoveAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == b.AccountAddress
		})).Return(nil)
		bridges.On("Delete", mock.Anything, tenantID).Return(nil)

		require.NoError(t, svc.DeleteBridge(context.Background(), tenantID))
		ledger.AssertExpectations(t)
		bridges.AssertExpectations(t)
	})

	t.Run("CirculatingVaultAssetOrphansAndProceeds", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		orphans := new(MockOrphanRepo)
		cursors := new(MockCursorRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, orphans, cursors, ledger)

		tenantID := uuid.New()
		b := bridge.NewBridge(tenantID, keypair.MustRandom())
		require.NoError(t, b.AttachVault(keypair.MustRandom()))

		circulationErr := shared.NewOperationError(shared.FailureAccountCreation,
			"gateway.RemoveVaultAccount", "vault asset still in circulation: 25 outstanding", nil)

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(b, nil)
		ledger.On("RemoveVaultAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == *b.VaultAddress
		})).Return(circulationErr)
		ledger.On("RemoveAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == b.AccountAddress
		})).Return(nil)
		cursors.On("LatestProcessed", mock.Anything).Return("998-1", nil)
		orphans.On("Create", mock.Anything, mock.MatchedBy(func(o *bridge.OrphanedAccount) bool {
			return o.Address == *b.VaultAddress && o.VaultAccount && o.LastCursor == "998-1"
		})).Return(nil)
		bridges.On("Delete", mock.Anything, tenantID).Return(nil)

		require.NoError(t, svc.DeleteBridge(context.Background(), tenantID))
		ledger.AssertExpectations(t)
		orphans.AssertExpectations(t)
		bridges.AssertExpectations(t)
	})

	t.Run("VaultRemovalFailureOrphansAndProceeds", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		orphans := new(MockOrphanRepo)
		cursors := new(MockCursorRepo)
		ledger := new(MockLedger)
		svc := newBridgeService(bridges, orphans, cursors, ledger)

		tenantID := uuid.New()
		b := bridge.NewBridge(tenantID, keypair.MustRandom())
		require.NoError(t, b.AttachVault(keypair.MustRandom()))

		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(b, nil)
		ledger.On("RemoveVaultAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == *b.VaultAddress
		})).Return(errors.New("op_has_sub_entries"))
		ledger.On("RemoveAccount", mock.Anything, mock.MatchedBy(func(kp *keypair.Full) bool {
			return kp.Address() == b.AccountAddress
		})).Return(nil)
		cursors.On("LatestProcessed", mock.Anything).Return("998-1", nil)
		orphans.On("Create", mock.Anything, mock.MatchedBy(func(o *bridge.OrphanedAccount) bool {
			return o.Address == *b.VaultAddress && o.VaultAccount && o.LastCursor == "998-1"
		})).Return(nil)
		bridges.On("Delete", mock.Anything, tenantID).Return(nil)

		require.NoError(t, svc.DeleteBridge(context.Background(), tenantID))
		orphans.AssertExpectations(t)
		bridges.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		bridges := new(MockBridgeRepo)
		svc := newBridgeService(bridges, new(MockOrphanRepo), new(MockCursorRepo), new(MockLedger))

		tenantID := uuid.New()
		bridges.On("GetByTenantID", mock.Anything, tenantID).Return(nil, bridge.ErrBridgeNotFound{TenantID: tenantID})

		err := svc.DeleteBridge(context.Background(), tenantID)
		assert.ErrorIs(t, err, bridge.ErrBridgeNotFound{})
	})
}
