package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

const simulatedChainID = 1337

var recipient = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

type chainBackend struct {
	Backend
	id int64
}

func (c chainBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(c.id), nil
}

func newSimulatedWallet(t *testing.T) (*KeyedWallet, *simulated.Backend) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	funds, _ := new(big.Int).SetString("10000000000000000000", 10)

	sim := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	})
	t.Cleanup(func() { _ = sim.Close() })

	client := sim.Client()
	resolver := func(_ context.Context, chainID int64) (Backend, error) {
		switch chainID {
		case simulatedChainID:
			return client, nil
		case 5:
			return chainBackend{Backend: client, id: 5}, nil
		case 10:
			return chainBackend{Backend: client, id: 11}, nil
		}
		return nil, errors.New("unknown chain")
	}

	return New(logger.NewNop(), key, simulatedChainID, resolver, 10*time.Millisecond), sim
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", crypto.PubkeyToAddress(key.PublicKey).Hex())

	_, err = ParsePrivateKey("not-a-key")
	assert.Error(t, err)
}

func TestSendNativeTransaction(t *testing.T) {
	w, sim := newSimulatedWallet(t)
	ctx := context.Background()

	value := big.NewInt(1_000_000_000_000_000)
	hash, err := w.SendTransaction(ctx, simulatedChainID, models.NativeTransfer{To: recipient, Value: value, GasLimit: blockchain.NativeTransferGas})
	require.NoError(t, err)
	sim.Commit()

	receipt, err := w.WaitForReceipt(ctx, simulatedChainID, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, blockchain.NativeTransferGas, receipt.GasUsed)

	balance, err := sim.Client().BalanceAt(ctx, recipient, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, value.Cmp(balance))
}

func TestSignAndSendContractCall(t *testing.T) {
	w, sim := newSimulatedWallet(t)
	ctx := context.Background()

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hash, err := w.SignAndSendContractCall(ctx, simulatedChainID, models.ContractCall{
		Contract: token,
		ABI:      blockchain.ERC20(),
		Method:   "transfer",
		Args:     []interface{}{recipient, big.NewInt(5_000_000)},
	})
	require.NoError(t, err)
	sim.Commit()

	receipt, err := w.WaitForReceipt(ctx, simulatedChainID, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	tx, _, err := sim.Client().TransactionByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, token, *tx.To())
	assert.Equal(t, blockchain.ERC20().Methods["transfer"].ID, tx.Data()[:4])
}

func TestSignAndSendContractCallBadArgs(t *testing.T) {
	w, _ := newSimulatedWallet(t)

	_, err := w.SignAndSendContractCall(context.Background(), simulatedChainID, models.ContractCall{
		Contract: recipient,
		ABI:      blockchain.ERC20(),
		Method:   "transfer",
		Args:     []interface{}{"not-an-address"},
	})
	assert.Error(t, err)
}

func TestWaitForReceiptTimeout(t *testing.T) {
	w, _ := newSimulatedWallet(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.WaitForReceipt(ctx, simulatedChainID, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendIgnoresSelectedChain(t *testing.T) {
	w, sim := newSimulatedWallet(t)
	ctx := context.Background()

	require.NoError(t, w.SwitchChain(ctx, 5))

	hash, err := w.SendTransaction(ctx, simulatedChainID, models.NativeTransfer{To: recipient, Value: big.NewInt(1)})
	require.NoError(t, err)
	sim.Commit()

	receipt, err := w.WaitForReceipt(ctx, simulatedChainID, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	tx, _, err := sim.Client().TransactionByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(simulatedChainID), tx.ChainId().Int64())
	assert.Equal(t, int64(5), w.Session().ChainID)
}

func TestSwitchChainNotifiesListeners(t *testing.T) {
	w, _ := newSimulatedWallet(t)
	ctx := context.Background()

	var changes []int64
	w.OnChainChanged(func(id int64) { changes = append(changes, id) })

	require.NoError(t, w.SwitchChain(ctx, 5))
	require.NoError(t, w.SwitchChain(ctx, 5))
	assert.Equal(t, []int64{5}, changes)

	id, err := w.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, int64(5), w.Session().ChainID)

	assert.Error(t, w.SwitchChain(ctx, 10))
	assert.Error(t, w.SwitchChain(ctx, 999))
	assert.Equal(t, []int64{5}, changes)
}

func TestDisconnect(t *testing.T) {
	w, _ := newSimulatedWallet(t)
	ctx := context.Background()

	accounts, err := w.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{w.Address()}, accounts)
	assert.True(t, w.Session().IsConnected)

	notified := false
	w.OnAccountsChanged(func(accounts []common.Address) {
		notified = true
		assert.Empty(t, accounts)
	})
	w.Disconnect()

	assert.True(t, notified)
	assert.False(t, w.Session().IsConnected)
	_, err = w.RequestAccounts(ctx)
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = w.SendTransaction(ctx, simulatedChainID, models.NativeTransfer{To: recipient, Value: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrDisconnected)
}
