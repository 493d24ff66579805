package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/core-coin/offramp/internal/blockchain"
	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
	"github.com/core-coin/offramp/pkg/units"
)

// defaultTokenDecimals is used when a token contract does not answer decimals().
const defaultTokenDecimals uint8 = 18

// ChainResolver resolves a chain id to its descriptor.
type ChainResolver interface {
	Resolve(chainID int64) (models.ChainDescriptor, bool)
}

// Store persists transfer records.
type Store interface {
	SaveTransfer(*models.TransferRecord) error
}

// ChainSwitcher is implemented by wallets that can change their selected chain.
type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chainID int64) error
}

// Observer receives every state transition of a transfer.
type Observer func(models.TransferState)

// Orchestrator drives token transfers to custody wallets through
// validating -> (preparing) -> transferring -> confirming -> completed.
type Orchestrator struct {
	logger              *logger.Logger
	chains              ChainResolver
	wallet              models.WalletProvider
	reader              models.ChainReader
	locker              Locker
	tracker             *Tracker
	store               Store
	confirmationTimeout time.Duration
	now                 func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator. reader and store may be nil: without a
// reader, ERC-20 decimals fall back to 18 and the pre-flight balance check is skipped.
func NewOrchestrator(
	logger *logger.Logger,
	chains ChainResolver,
	wallet models.WalletProvider,
	reader models.ChainReader,
	locker Locker,
	tracker *Tracker,
	store Store,
	confirmationTimeout time.Duration,
) *Orchestrator {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Orchestrator{
		logger:              logger,
		chains:              chains,
		wallet:              wallet,
		reader:              reader,
		locker:              locker,
		tracker:             tracker,
		store:               store,
		confirmationTimeout: confirmationTimeout,
		now:                 time.Now,
	}
}

// Tracker returns the tracker holding the latest state of each transfer.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Wait blocks until confirmations of detached transfers have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Execute runs one transfer attempt and returns its final state. Every failure ends
// in StepError with a display message; the returned error is the same failure as a
// *models.Error. Exactly one transaction is broadcast per successful call and none
// is ever resent.
//
// Cancelling ctx before broadcast aborts with ErrorKindCancelled. Cancelling it after
// broadcast detaches the caller: Execute returns the confirming state with the pending
// hash, the observer receives nothing more, and confirmation is tracked in the background.
func (o *Orchestrator) Execute(
	ctx context.Context,
	session models.WalletSession,
	req models.TransferRequest,
	observer Observer,
) (models.TransferState, error) {
	r := o.newRun(session, req, observer)
	r.step(models.StepValidating)

	if !session.IsConnected || session.Address == (common.Address{}) {
		return r.fail(models.NewError(models.ErrorKindConnection, "Wallet not connected", nil))
	}

	lockKey := SessionKey(session.Address)
	acquired, err := o.locker.TryLock(lockKey)
	if err != nil {
		return r.fail(models.NewError(models.ErrorKindBackend, "Could not reserve wallet session", err))
	}
	if !acquired {
		return r.fail(models.NewError(models.ErrorKindTransferInProgress, "Another transfer is already in progress for this wallet", nil))
	}
	release := true
	defer func() {
		if release {
			o.unlock(lockKey)
		}
	}()

	if err := r.validate(ctx); err != nil {
		return r.fail(err)
	}

	if !r.req.Token.IsNative() {
		r.step(models.StepPreparing)
		if err := r.prepare(ctx); err != nil {
			return r.fail(err)
		}
	}

	if err := r.checkBalance(ctx); err != nil {
		return r.fail(err)
	}

	if ctx.Err() != nil {
		return r.fail(models.NewError(models.ErrorKindCancelled, "Transfer cancelled", ctx.Err()))
	}

	r.step(models.StepTransferring)
	hash, err := r.broadcast(ctx)
	if err != nil {
		return r.fail(ClassifyProviderError(err))
	}
	r.state.TransactionHash = hash.Hex()
	r.state.ExplorerURL = r.chain.ExplorerTxURL(r.state.TransactionHash)
	o.logger.Info("Transfer broadcast",
		"id", r.state.ID,
		"chain_id", r.chain.ChainID,
		"symbol", r.req.Token.Symbol,
		"amount", r.req.AmountDecimal,
		"tx", r.state.TransactionHash,
	)

	r.step(models.StepConfirming)

	waitCtx, cancelWait := context.WithTimeout(context.WithoutCancel(ctx), o.confirmationTimeout)
	results := make(chan receiptResult, 1)
	go func() {
		receipt, err := o.wallet.WaitForReceipt(waitCtx, r.chain.ChainID, hash)
		results <- receiptResult{receipt: receipt, err: err}
	}()

	select {
	case res := <-results:
		cancelWait()
		return r.confirm(res)
	case <-ctx.Done():
		snapshot := r.detach()
		o.logger.Info("Caller detached, confirming in background", "id", snapshot.ID, "tx", snapshot.TransactionHash)

		release = false
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer o.unlock(lockKey)
			defer cancelWait()
			_, _ = r.confirm(<-results)
		}()
		return snapshot, nil
	}
}

func (o *Orchestrator) unlock(key string) {
	if err := o.locker.Unlock(key); err != nil {
		o.logger.Error("Failed to release session lock", "key", key, "error", err)
	}
}

type receiptResult struct {
	receipt *types.Receipt
	err     error
}

// run is the mutable state of one Execute call.
type run struct {
	o        *Orchestrator
	session  models.WalletSession
	req      models.TransferRequest
	observer Observer
	started  time.Time

	chain    models.ChainDescriptor
	decimals uint8
	value    *big.Int

	mu       sync.Mutex
	state    models.TransferState
	detached bool
}

func (o *Orchestrator) newRun(session models.WalletSession, req models.TransferRequest, observer Observer) *run {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := o.now()
	r := &run{
		o:        o,
		session:  session,
		req:      req,
		observer: observer,
		started:  now,
		state: models.TransferState{
			ID:        req.ID,
			Step:      models.StepIdle,
			ChainID:   req.Token.ChainID,
			Symbol:    req.Token.Symbol,
			Amount:    strings.TrimSpace(req.AmountDecimal),
			UpdatedAt: now,
		},
	}
	o.tracker.Update(r.state)
	return r
}

// validate checks connection-independent preconditions and resolves the destination.
func (r *run) validate(ctx context.Context) *models.Error {
	token := r.req.Token

	chain, ok := r.o.chains.Resolve(token.ChainID)
	if !ok || chain.CustodyAddress == (common.Address{}) {
		return models.NewError(models.ErrorKindConfiguration,
			fmt.Sprintf("No custody wallet configured for chain %d", token.ChainID), models.ErrUnsupportedChain)
	}
	r.chain = chain

	amount, err := units.ParseAmount(r.req.AmountDecimal)
	if err != nil {
		return models.NewError(models.ErrorKindValidation, "Amount is not a valid number", err)
	}
	if amount.Sign() <= 0 {
		return models.NewError(models.ErrorKindValidation, "Amount must be greater than zero", nil)
	}

	if r.req.From == (common.Address{}) {
		r.req.From = r.session.Address
	}
	if r.req.From != r.session.Address {
		return models.NewError(models.ErrorKindValidation, "Sender does not match the connected wallet", nil)
	}

	if r.req.To == (common.Address{}) {
		r.req.To = chain.CustodyAddress
	}
	if r.req.To != chain.CustodyAddress {
		return models.NewError(models.ErrorKindValidation, "Destination is not the custody wallet for this chain", nil)
	}

	if r.session.ChainID != token.ChainID {
		if !r.req.SwitchChain {
			return networkMismatch(r.session.ChainID, token.ChainID)
		}
		if err := r.switchChain(ctx); err != nil {
			return err
		}
	}
	walletChain, err := r.o.wallet.ChainID(ctx)
	if err != nil {
		return ClassifyProviderError(err)
	}
	if walletChain != token.ChainID {
		return networkMismatch(walletChain, token.ChainID)
	}

	if token.IsNative() {
		r.decimals = chain.NativeDecimals
		if r.decimals == 0 {
			r.decimals = defaultTokenDecimals
		}
		return r.scale()
	}
	return nil
}

// switchChain moves the wallet to the token's chain. It runs under the session lock
// so no other transfer of the session observes the change mid-flight.
func (r *run) switchChain(ctx context.Context) *models.Error {
	target := r.req.Token.ChainID
	switcher, ok := r.o.wallet.(ChainSwitcher)
	if !ok {
		return networkMismatch(r.session.ChainID, target)
	}
	if err := switcher.SwitchChain(ctx, target); err != nil {
		return models.NewError(models.ErrorKindNetworkMismatch,
			fmt.Sprintf("Could not switch wallet from chain %d to chain %d: %s", r.session.ChainID, target, err), err)
	}
	r.o.logger.Info("Switched wallet chain", "id", r.state.ID, "from", r.session.ChainID, "to", target)
	r.session.ChainID = target
	return nil
}

// prepare resolves ERC-20 decimals and scales the amount to base units.
func (r *run) prepare(ctx context.Context) *models.Error {
	token := r.req.Token
	r.decimals = defaultTokenDecimals

	if r.o.reader != nil {
		decimals, err := r.o.reader.TokenDecimals(ctx, token.ChainID, token.Address)
		if err != nil {
			r.o.logger.Warn("Failed to read token decimals, assuming 18",
				"chain_id", token.ChainID,
				"token", token.Address.Hex(),
				"error", err,
			)
		} else {
			r.decimals = decimals
		}
	}
	return r.scale()
}

func (r *run) scale() *models.Error {
	amount, err := units.ParseAmount(r.req.AmountDecimal)
	if err != nil {
		return models.NewError(models.ErrorKindValidation, "Amount is not a valid number", err)
	}
	value, err := units.ToBaseUnits(amount, r.decimals)
	if err != nil {
		return models.NewError(models.ErrorKindValidation,
			fmt.Sprintf("Amount has more than %d decimal places", r.decimals), err)
	}
	if value.Sign() <= 0 {
		return models.NewError(models.ErrorKindValidation, "Amount must be greater than zero", nil)
	}
	r.value = value
	return nil
}

// checkBalance compares the amount with the sender's balance. A failed read skips the
// check; the provider still rejects an underfunded transaction.
func (r *run) checkBalance(ctx context.Context) *models.Error {
	if r.o.reader == nil {
		return nil
	}

	token := r.req.Token
	var (
		balance *big.Int
		err     error
	)
	if token.IsNative() {
		balance, err = r.o.reader.NativeBalance(ctx, token.ChainID, r.req.From)
	} else {
		balance, err = r.o.reader.TokenBalance(ctx, token.ChainID, token.Address, r.req.From)
	}
	if err != nil || balance == nil {
		r.o.logger.Warn("Pre-flight balance check skipped", "chain_id", token.ChainID, "symbol", token.Symbol, "error", err)
		return nil
	}
	if balance.Cmp(r.value) < 0 {
		return models.NewError(models.ErrorKindInsufficientFunds,
			fmt.Sprintf("Insufficient %s balance: have %s, need %s", token.Symbol,
				units.FromBaseUnits(balance, r.decimals), units.FromBaseUnits(r.value, r.decimals)), nil)
	}
	return nil
}

func (r *run) broadcast(ctx context.Context) (common.Hash, error) {
	if r.req.Token.IsNative() {
		return r.o.wallet.SendTransaction(ctx, r.chain.ChainID, models.NativeTransfer{
			To:       r.req.To,
			Value:    r.value,
			GasLimit: blockchain.NativeTransferGas,
		})
	}
	return r.o.wallet.SignAndSendContractCall(ctx, r.chain.ChainID, models.ContractCall{
		Contract: r.req.Token.Address,
		ABI:      blockchain.ERC20(),
		Method:   "transfer",
		Args:     []interface{}{r.req.To, r.value},
	})
}

// confirm turns the receipt wait result into a terminal state.
func (r *run) confirm(res receiptResult) (models.TransferState, error) {
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			return r.fail(models.NewError(models.ErrorKindConfirmationTimeout,
				fmt.Sprintf("Transaction not confirmed within %s", r.o.confirmationTimeout), res.err))
		}
		return r.fail(ClassifyProviderError(res.err))
	}
	if res.receipt == nil {
		return r.fail(models.NewError(models.ErrorKindProvider, "Provider returned no receipt", nil))
	}
	if res.receipt.Status != types.ReceiptStatusSuccessful {
		return r.fail(models.NewError(models.ErrorKindProvider, "Transaction reverted", nil))
	}
	if !r.req.Token.IsNative() {
		event, ok := blockchain.FindTransferEvent(res.receipt, r.req.Token.Address, r.req.To)
		if !ok || event.Amount.Cmp(r.value) != 0 {
			return r.fail(models.NewError(models.ErrorKindProvider, "Token transfer not found in receipt", nil))
		}
	}

	r.mu.Lock()
	if res.receipt.TxHash != (common.Hash{}) {
		r.state.TransactionHash = res.receipt.TxHash.Hex()
		r.state.ExplorerURL = r.chain.ExplorerTxURL(r.state.TransactionHash)
	}
	r.mu.Unlock()

	r.o.logger.Info("Transfer completed", "id", r.state.ID, "tx", r.state.TransactionHash)
	state := r.step(models.StepCompleted)
	return state, nil
}

// step moves to s, records the transition and notifies the observer unless detached.
func (r *run) step(s models.TransferStep) models.TransferState {
	r.mu.Lock()
	r.state.Step = s
	r.state.UpdatedAt = r.o.now()
	state := r.state
	notify := r.observer != nil && !r.detached
	r.mu.Unlock()

	r.o.tracker.Update(state)
	r.persist(state)
	if s.IsTerminal() {
		outcome := string(s)
		if s == models.StepError {
			outcome = string(state.ErrorKind)
		}
		metrics.RecordTransfer(state.ChainID, outcome, state.UpdatedAt.Sub(r.started))
	}
	if notify {
		r.observer(state)
	}
	return state
}

func (r *run) fail(err *models.Error) (models.TransferState, error) {
	if err == nil {
		err = models.NewError(models.ErrorKindUnknown, models.UnknownErrorMessage, nil)
	}
	message := err.Message
	if message == "" {
		message = models.UnknownErrorMessage
	}

	r.mu.Lock()
	r.state.Error = message
	r.state.ErrorKind = err.Kind
	r.mu.Unlock()

	r.o.logger.Warn("Transfer failed",
		"id", r.state.ID,
		"chain_id", r.state.ChainID,
		"kind", err.Kind,
		"tx", r.state.TransactionHash,
		"error", err,
	)
	return r.step(models.StepError), err
}

func (r *run) detach() models.TransferState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = true
	return r.state
}

func (r *run) persist(state models.TransferState) {
	if r.o.store == nil {
		return
	}
	record := &models.TransferRecord{
		ID:           state.ID,
		ChainID:      state.ChainID,
		Symbol:       state.Symbol,
		TokenAddress: r.req.Token.Address.Hex(),
		Amount:       state.Amount,
		FromAddress:  r.req.From.Hex(),
		ToAddress:    r.req.To.Hex(),
		Step:         string(state.Step),
		TxHash:       state.TransactionHash,
		Error:        state.Error,
		ErrorKind:    string(state.ErrorKind),
		CreatedAt:    r.started.Unix(),
		UpdatedAt:    state.UpdatedAt.Unix(),
	}
	if err := r.o.store.SaveTransfer(record); err != nil {
		r.o.logger.Error("Failed to persist transfer", "id", state.ID, "step", state.Step, "error", err)
	}
}
