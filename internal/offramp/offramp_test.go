package offramp

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/offramp/internal/balances"
	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/config"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/internal/pricing"
	"github.com/core-coin/offramp/internal/registry"
	"github.com/core-coin/offramp/internal/repository"
	"github.com/core-coin/offramp/internal/transfer"
	"github.com/core-coin/offramp/internal/withdrawal"
	"github.com/core-coin/offramp/pkg/logger"
)

const (
	custodyEth     = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	custodyPolygon = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	usdtAddress    = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

var (
	user  = common.HexToAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	mined = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
)

func bank() models.BankDetails {
	return models.BankDetails{
		AccountNumber:     "123456789012",
		IFSCCode:          "hdfc0001234",
		AccountHolderName: "A. Sharma",
		BankName:          "HDFC Bank",
	}
}

type fakeWallet struct {
	mu sync.Mutex

	chainID   int64
	switchErr error
	sendErr   error
	status    uint64
	block     chan struct{}
	waitSeen  chan struct{}

	switched []int64
	sentOn   []int64
	sends    int
	calls    int
	lastCall models.ContractCall
}

func (f *fakeWallet) Session() models.WalletSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.WalletSession{Address: user, ChainID: f.chainID, IsConnected: true}
}

func (f *fakeWallet) SwitchChain(_ context.Context, chainID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, chainID)
	if f.switchErr != nil {
		return f.switchErr
	}
	f.chainID = chainID
	return nil
}

func (f *fakeWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{user}, nil
}

func (f *fakeWallet) ChainID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *fakeWallet) SendTransaction(_ context.Context, chainID int64, _ models.NativeTransfer) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.sentOn = append(f.sentOn, chainID)
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	return mined, nil
}

func (f *fakeWallet) SignAndSendContractCall(_ context.Context, chainID int64, call models.ContractCall) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sentOn = append(f.sentOn, chainID)
	f.lastCall = call
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	return mined, nil
}

func (f *fakeWallet) WaitForReceipt(ctx context.Context, _ int64, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	block, seen := f.block, f.waitSeen
	f.waitSeen = nil
	f.mu.Unlock()

	if seen != nil {
		close(seen)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	receipt := &types.Receipt{Status: f.status, TxHash: mined}
	if f.calls > 0 {
		to := f.lastCall.Args[0].(common.Address)
		amount := f.lastCall.Args[1].(*big.Int)
		receipt.Logs = []*types.Log{blockchain.TransferEventLog(f.lastCall.Contract, user, to, amount)}
	}
	return receipt, nil
}

func (f *fakeWallet) OnAccountsChanged(func([]common.Address)) {}
func (f *fakeWallet) OnChainChanged(func(int64))               {}

func (f *fakeWallet) chains() (switched, sentOn []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.switched...), append([]int64(nil), f.sentOn...)
}

func (f *fakeWallet) broadcasts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends + f.calls
}

// fakeReader can hold the next native balance read until release is closed.
type fakeReader struct {
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

func (f *fakeReader) holdNextRead() (entered, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered, f.release = make(chan struct{}), make(chan struct{})
	return f.entered, f.release
}

func (f *fakeReader) NativeBalance(ctx context.Context, _ int64, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	entered, release := f.entered, f.release
	f.entered, f.release = nil, nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil), nil
}

func (*fakeReader) TokenBalance(context.Context, int64, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(500_000_000), nil
}

func (*fakeReader) TokenDecimals(context.Context, int64, common.Address) (uint8, error) {
	return 6, nil
}

type notifications struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *notifications) SendNotification(notification *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *notification)
}

func (n *notifications) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var kinds []models.NotificationKind
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

type backend struct {
	mu     sync.Mutex
	hits   int
	bodies []withdrawal.InitiateRequest
	status int
	reply  string
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits++
	var body withdrawal.InitiateRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.bodies = append(b.bodies, body)

	status, reply := b.status, b.reply
	if status == 0 {
		status, reply = http.StatusOK, `{"withdrawalId":"wd-1"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply))
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits
}

func (b *backend) last() withdrawal.InitiateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[len(b.bodies)-1]
}

type harness struct {
	offramp *Offramp
	wallet  *fakeWallet
	reader  *fakeReader
	repo    *repository.MemoryDB
	backend *backend
	alerts  *notifications
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	b := &backend{}
	server := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		DefaultINRPerUSD:  83.25,
		PriceCacheTTL:     time.Minute,
		WithdrawalAPIURL:  server.URL,
		WithdrawalTimeout: time.Second,
	}
	log := logger.NewNop()

	reg := registry.New(log,
		registry.ChainConfig{ChainID: 1, Name: "Ethereum", NativeSymbol: "ETH", CustodyAddress: custodyEth, RPCURL: "http://eth",
			ExplorerTxURL: "https://etherscan.io/tx/",
			Tokens:        []registry.TokenConfig{{Symbol: "USDT", Name: "Tether USD", Address: usdtAddress, Decimals: 6}}},
		registry.ChainConfig{ChainID: 137, Name: "Polygon", NativeSymbol: "POL", CustodyAddress: custodyPolygon, RPCURL: "http://polygon"},
	)

	wallet := &fakeWallet{chainID: 1, status: types.ReceiptStatusSuccessful}
	reader := &fakeReader{}
	repo := repository.NewMemoryDB()
	prices := pricing.NewClient(log, cfg, nil)
	aggregator := balances.NewAggregator(log, reg, reader, prices, 4)
	cache := balances.NewCache(log, aggregator, time.Minute, time.Minute)
	orchestrator := transfer.NewOrchestrator(log, reg, wallet, reader, transfer.NewMemoryLocker(), transfer.NewTracker(), repo, time.Second)
	alerts := &notifications{}

	o := NewOfframp(reg, cache, prices, orchestrator, withdrawal.NewSubmitter(log, cfg), wallet, repo, alerts, log, cfg)
	t.Cleanup(o.Stop)

	return &harness{offramp: o, wallet: wallet, reader: reader, repo: repo, backend: b, alerts: alerts}
}

func TestWithdrawINRAmountNative(t *testing.T) {
	h := newHarness(t)

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "eth",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepCompleted, result.Transfer.Step)
	assert.Equal(t, mined.Hex(), result.Transfer.TransactionHash)
	assert.Equal(t, "wd-1", result.WithdrawalID)
	require.NotNil(t, result.Quote)
	assert.Equal(t, "0.004004", result.Quote.TokenAmount.String())

	body := h.backend.last()
	assert.Equal(t, user.Hex(), body.UserAddress)
	assert.Equal(t, "ETH", body.TokenSymbol)
	assert.Equal(t, "0.004004", body.TokenAmount)
	assert.Equal(t, "1000.00", body.INRAmount)
	assert.Equal(t, int64(1), body.ChainID)
	assert.Equal(t, mined.Hex(), body.TransferHash)
	assert.Equal(t, "123456789012", body.BankDetails.AccountNumber)

	record, err := h.repo.GetWithdrawalByTransferID(result.Transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "wd-1", record.WithdrawalID)
	assert.Equal(t, "9012", record.AccountLast4)
	assert.Equal(t, "HDFC0001234", record.IFSCCode)
	assert.Equal(t, models.WithdrawalStatusSubmitted, record.Status)

	assert.Equal(t, []models.NotificationKind{models.NotificationWithdrawalRegistered}, h.alerts.kinds())
}

func TestWithdrawTokenAmountERC20(t *testing.T) {
	h := newHarness(t)

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:     1,
		Symbol:      "USDT",
		TokenAmount: "25",
		Bank:        bank(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepCompleted, result.Transfer.Step)
	assert.Nil(t, result.Quote)
	assert.Equal(t, "transfer", h.wallet.lastCall.Method)
	assert.Equal(t, big.NewInt(25_000_000), h.wallet.lastCall.Args[1])

	body := h.backend.last()
	assert.Equal(t, "25", body.TokenAmount)
	assert.Equal(t, "2081.25", body.INRAmount)
}

func TestWithdrawValidatesBeforeTransfer(t *testing.T) {
	h := newHarness(t)

	cases := map[string]models.WithdrawalInput{
		"bad ifsc":         {ChainID: 1, Symbol: "ETH", INRAmount: decimal.NewFromInt(100), Bank: models.BankDetails{AccountNumber: "123456789012", IFSCCode: "HDFC1234", AccountHolderName: "A"}},
		"short account":    {ChainID: 1, Symbol: "ETH", INRAmount: decimal.NewFromInt(100), Bank: models.BankDetails{AccountNumber: "1234", IFSCCode: "HDFC0001234", AccountHolderName: "A"}},
		"no holder":        {ChainID: 1, Symbol: "ETH", INRAmount: decimal.NewFromInt(100), Bank: models.BankDetails{AccountNumber: "123456789012", IFSCCode: "HDFC0001234"}},
		"both amounts":     {ChainID: 1, Symbol: "ETH", INRAmount: decimal.NewFromInt(100), TokenAmount: "1", Bank: bank()},
		"no amount":        {ChainID: 1, Symbol: "ETH", Bank: bank()},
		"negative inr":     {ChainID: 1, Symbol: "ETH", INRAmount: decimal.NewFromInt(-5), Bank: bank()},
		"bad token amount": {ChainID: 1, Symbol: "ETH", TokenAmount: "abc", Bank: bank()},
		"unknown token":    {ChainID: 1, Symbol: "DOGE", INRAmount: decimal.NewFromInt(100), Bank: bank()},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.offramp.Withdraw(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
		})
	}

	assert.Zero(t, h.wallet.broadcasts())
	assert.Zero(t, h.backend.count())
}

func TestWithdrawUnsupportedChain(t *testing.T) {
	h := newHarness(t)

	_, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   56,
		Symbol:    "BNB",
		INRAmount: decimal.NewFromInt(100),
		Bank:      bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindConfiguration, models.KindOf(err))
	assert.True(t, errors.Is(err, models.ErrUnsupportedChain))
}

func TestWithdrawSkipsBackendWhenTransferFails(t *testing.T) {
	h := newHarness(t)
	h.wallet.sendErr = errors.New("User rejected the request")

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindUserRejected, models.KindOf(err))
	assert.Equal(t, models.StepError, result.Transfer.Step)
	assert.Empty(t, result.WithdrawalID)
	assert.Zero(t, h.backend.count())
	assert.Empty(t, h.alerts.kinds())
}

func TestWithdrawRevertedTransferAlerts(t *testing.T) {
	h := newHarness(t)
	h.wallet.status = types.ReceiptStatusFailed

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.StepError, result.Transfer.Step)
	assert.NotEmpty(t, result.Transfer.TransactionHash)
	assert.Zero(t, h.backend.count())
	assert.Equal(t, []models.NotificationKind{models.NotificationTransferFailed}, h.alerts.kinds())
}

func TestWithdrawBackendError(t *testing.T) {
	h := newHarness(t)
	h.backend.status = http.StatusBadRequest
	h.backend.reply = `{"error":"Bank account is blocked"}`

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindBackend, models.KindOf(err))
	assert.Equal(t, models.StepCompleted, result.Transfer.Step)
	assert.Equal(t, "Bank account is blocked", result.WithdrawalError)

	record, err := h.repo.GetWithdrawalByTransferID(result.Transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.WithdrawalStatusFailed, record.Status)
	assert.Equal(t, "Bank account is blocked", record.Error)

	status, err := h.offramp.Status(result.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, status.Step)
	assert.Equal(t, "Bank account is blocked", status.WithdrawalError)
	assert.Equal(t, []models.NotificationKind{models.NotificationTransferFailed}, h.alerts.kinds())
}

func TestWithdrawSwitchesWalletChain(t *testing.T) {
	h := newHarness(t)
	h.wallet.chainID = 137

	result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, result.Transfer.Step)
	switched, sentOn := h.wallet.chains()
	assert.Equal(t, []int64{1}, switched)
	assert.Equal(t, []int64{1}, sentOn)
}

func TestWithdrawFailedSwitchIsNetworkMismatch(t *testing.T) {
	h := newHarness(t)
	h.wallet.chainID = 137
	h.wallet.switchErr = errors.New("user rejected chain switch")

	_, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindNetworkMismatch, models.KindOf(err))
	assert.ErrorIs(t, err, h.wallet.switchErr)
	assert.Contains(t, models.UserMessage(err), "user rejected chain switch")
	assert.Zero(t, h.wallet.broadcasts())
}

func TestConcurrentWithdrawalOnOtherChainKeepsWalletChain(t *testing.T) {
	h := newHarness(t)
	entered, release := h.reader.holdNextRead()

	type outcome struct {
		result models.WithdrawalResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		result, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
			ChainID:   1,
			Symbol:    "ETH",
			INRAmount: decimal.NewFromInt(1000),
			Bank:      bank(),
		})
		first <- outcome{result, err}
	}()
	<-entered

	_, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:     137,
		Symbol:      "POL",
		TokenAmount: "10",
		Bank:        bank(),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTransferInProgress, models.KindOf(err))
	assert.Equal(t, int64(1), h.wallet.Session().ChainID)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, models.StepCompleted, res.result.Transfer.Step)
	assert.Equal(t, int64(1), res.result.Transfer.ChainID)

	switched, sentOn := h.wallet.chains()
	assert.Empty(t, switched)
	assert.Equal(t, []int64{1}, sentOn)
	assert.Equal(t, 1, h.backend.count())
}

func TestWithdrawRegistersPayoutAfterCallerLeaves(t *testing.T) {
	h := newHarness(t)
	h.wallet.block = make(chan struct{})
	h.wallet.waitSeen = make(chan struct{})
	waitSeen := h.wallet.waitSeen

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-waitSeen
		cancel()
	}()

	result, err := h.offramp.Withdraw(ctx, models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirming, result.Transfer.Step)
	assert.Zero(t, h.backend.count())

	close(h.wallet.block)

	require.Eventually(t, func() bool {
		status, err := h.offramp.Status(result.Transfer.ID)
		return err == nil && status.WithdrawalID == "wd-1"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, h.backend.count())
	assert.Equal(t, mined.Hex(), h.backend.last().TransferHash)

	status, err := h.offramp.Status(result.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, status.Step)

	record, err := h.repo.GetWithdrawalByTransferID(result.Transfer.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.WithdrawalStatusSubmitted, record.Status)
	require.Eventually(t, func() bool {
		kinds := h.alerts.kinds()
		return len(kinds) == 1 && kinds[0] == models.NotificationWithdrawalRegistered
	}, time.Second, 10*time.Millisecond)
}

func TestWithdrawAlertsWhenDetachedTransferFails(t *testing.T) {
	h := newHarness(t)
	h.wallet.status = types.ReceiptStatusFailed
	h.wallet.block = make(chan struct{})
	h.wallet.waitSeen = make(chan struct{})
	waitSeen := h.wallet.waitSeen

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-waitSeen
		cancel()
	}()

	result, err := h.offramp.Withdraw(ctx, models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirming, result.Transfer.Step)

	close(h.wallet.block)

	require.Eventually(t, func() bool {
		kinds := h.alerts.kinds()
		return len(kinds) == 1 && kinds[0] == models.NotificationTransferFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.backend.count())

	status, err := h.offramp.Status(result.Transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepError, status.Step)
}

func TestWithdrawRejectsReusedID(t *testing.T) {
	h := newHarness(t)
	in := models.WithdrawalInput{
		ID:        "dup",
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	}

	_, err := h.offramp.Withdraw(context.Background(), in)
	require.NoError(t, err)

	_, err = h.offramp.Withdraw(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))

	_, err = h.offramp.StartWithdrawal(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))

	require.NoError(t, h.repo.SaveTransfer(&models.TransferRecord{ID: "persisted", Step: string(models.StepCompleted)}))
	in.ID = "persisted"
	_, err = h.offramp.Withdraw(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))

	assert.Equal(t, 1, h.wallet.broadcasts())
	assert.Equal(t, 1, h.backend.count())
}

func TestStartWithdrawal(t *testing.T) {
	h := newHarness(t)

	id, err := h.offramp.StartWithdrawal(context.Background(), models.WithdrawalInput{
		ID:        "transfer-1",
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)
	assert.Equal(t, "transfer-1", id)

	require.Eventually(t, func() bool {
		status, err := h.offramp.Status(id)
		return err == nil && status.WithdrawalID == "wd-1"
	}, 2*time.Second, 10*time.Millisecond)

	status, err := h.offramp.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, status.Step)
	assert.Equal(t, mined.Hex(), status.TransactionHash)
}

func TestStartWithdrawalValidatesSynchronously(t *testing.T) {
	h := newHarness(t)

	_, err := h.offramp.StartWithdrawal(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
	assert.Zero(t, h.wallet.broadcasts())
}

func TestStatusFromRepository(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.repo.SaveTransfer(&models.TransferRecord{
		ID:      "old",
		ChainID: 1,
		Symbol:  "ETH",
		Amount:  "0.5",
		Step:    string(models.StepCompleted),
		TxHash:  mined.Hex(),
	}))
	require.NoError(t, h.repo.AddWithdrawal(&models.WithdrawalRecord{
		WithdrawalID: "wd-old",
		TransferID:   "old",
		Status:       models.WithdrawalStatusSubmitted,
	}))

	status, err := h.offramp.Status("old")
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, status.Step)
	assert.Equal(t, "https://etherscan.io/tx/"+mined.Hex(), status.ExplorerURL)
	assert.Equal(t, "wd-old", status.WithdrawalID)

	_, err = h.offramp.Status("missing")
	assert.ErrorIs(t, err, models.ErrTransferNotFound)
}

func TestMaintainRemovesExpiredLocks(t *testing.T) {
	h := newHarness(t)

	acquired, err := h.repo.AcquireSessionLock("wallet:a", "other", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	h.offramp.maintain(time.Now().Add(time.Hour))

	acquired, err = h.repo.AcquireSessionLock("wallet:a", "this", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestBalancesSortedByValue(t *testing.T) {
	h := newHarness(t)

	snapshot := h.offramp.Balances(context.Background(), user, []int64{1}, true)
	require.Len(t, snapshot.Balances, 2)
	assert.Equal(t, "ETH", snapshot.Balances[0].Token.Symbol)
	assert.Equal(t, "USDT", snapshot.Balances[1].Token.Symbol)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)

	_, err := h.offramp.Withdraw(context.Background(), models.WithdrawalInput{
		ChainID:   1,
		Symbol:    "ETH",
		INRAmount: decimal.NewFromInt(1000),
		Bank:      bank(),
	})
	require.NoError(t, err)

	records, err := h.offramp.History(user, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(models.StepCompleted), records[0].Step)
	assert.Equal(t, mined.Hex(), records[0].TxHash)
}
