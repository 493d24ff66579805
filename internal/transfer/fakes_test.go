package transfer

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/models"
)

var (
	sender    = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	custody   = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	usdtToken = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	pending   = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	mined     = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
)

type fakeChains map[int64]models.ChainDescriptor

func (f fakeChains) Resolve(chainID int64) (models.ChainDescriptor, bool) {
	c, ok := f[chainID]
	return c, ok
}

func testChains() fakeChains {
	return fakeChains{
		1: {
			ChainID:               1,
			Name:                  "Ethereum",
			NativeSymbol:          "ETH",
			NativeDecimals:        18,
			CustodyAddress:        custody,
			ExplorerTxURLTemplate: "https://etherscan.io/tx/",
		},
	}
}

func ethToken() models.TokenDescriptor {
	return models.TokenDescriptor{Symbol: "ETH", Name: "Ether", Address: models.NativeTokenAddress, Decimals: 18, ChainID: 1}
}

func usdt() models.TokenDescriptor {
	return models.TokenDescriptor{Symbol: "USDT", Name: "Tether USD", Address: usdtToken, Decimals: 6, ChainID: 1}
}

func connected() models.WalletSession {
	return models.WalletSession{Address: sender, ChainID: 1, IsConnected: true}
}

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

type fakeWallet struct {
	mu sync.Mutex

	chainID   int64
	switchErr error
	sendErr   error
	waitErr   error
	status    uint64
	noEvent   bool
	block     chan struct{}
	waitSeen  chan struct{}

	sends      int
	calls      int
	switched   []int64
	sentOn     []int64
	lastNative models.NativeTransfer
	lastCall   models.ContractCall
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{chainID: 1, status: types.ReceiptStatusSuccessful}
}

func (f *fakeWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{sender}, nil
}

func (f *fakeWallet) ChainID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
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

func (f *fakeWallet) SendTransaction(_ context.Context, chainID int64, tx models.NativeTransfer) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.sentOn = append(f.sentOn, chainID)
	f.lastNative = tx
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	return pending, nil
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
	return pending, nil
}

func (f *fakeWallet) WaitForReceipt(ctx context.Context, _ int64, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	block, seen := f.block, f.waitSeen
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
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	receipt := &types.Receipt{Status: f.status, TxHash: mined}
	if f.calls > 0 && !f.noEvent {
		to := f.lastCall.Args[0].(common.Address)
		amount := f.lastCall.Args[1].(*big.Int)
		receipt.Logs = []*types.Log{blockchain.TransferEventLog(f.lastCall.Contract, sender, to, amount)}
	}
	return receipt, nil
}

func (f *fakeWallet) OnAccountsChanged(func([]common.Address)) {}
func (f *fakeWallet) OnChainChanged(func(int64))               {}

func (f *fakeWallet) switches() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.switched...)
}

func (f *fakeWallet) broadcasts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends + f.calls
}

type fakeReader struct {
	decimals    uint8
	decimalsErr error
	balance     *big.Int
	balanceErr  error
}

func (f *fakeReader) NativeBalance(context.Context, int64, common.Address) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeReader) TokenBalance(context.Context, int64, common.Address, common.Address) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeReader) TokenDecimals(context.Context, int64, common.Address) (uint8, error) {
	return f.decimals, f.decimalsErr
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]models.TransferRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]models.TransferRecord)}
}

func (m *memoryStore) SaveTransfer(record *models.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = *record
	return nil
}

func (m *memoryStore) get(id string) (models.TransferRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

type stepRecorder struct {
	mu    sync.Mutex
	steps []models.TransferStep
}

func (s *stepRecorder) observe(state models.TransferState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, state.Step)
}

func (s *stepRecorder) recorded() []models.TransferStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransferStep(nil), s.steps...)
}

var errDropped = errors.New("transaction dropped from mempool")
