package offramp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/core-coin/offramp/internal/balances"
	"github.com/core-coin/offramp/internal/config"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/internal/pricing"
	"github.com/core-coin/offramp/internal/registry"
	"github.com/core-coin/offramp/internal/transfer"
	"github.com/core-coin/offramp/internal/withdrawal"
	"github.com/core-coin/offramp/pkg/logger"
	"github.com/core-coin/offramp/pkg/validation"
)

const (
	// maintenanceInterval is how often expired locks and old transfer states are purged
	maintenanceInterval = time.Minute
	// trackerRetention is how long finished transfers stay in memory
	trackerRetention = time.Hour
	// inrPrecision is the number of decimals of an INR amount
	inrPrecision = 2
	maxHistory   = 100
)

// Wallet is the service's own wallet. The orchestrator switches its chain under the
// session lock when a withdrawal targets another chain.
type Wallet interface {
	models.WalletProvider
	transfer.ChainSwitcher
	Session() models.WalletSession
}

// Offramp wires conversion, transfer and withdrawal registration into one flow:
// quote the INR amount, move tokens to the custody wallet, then register the payout.
type Offramp struct {
	logger *logger.Logger
	config *config.Config

	registry     *registry.Registry
	balances     *balances.Cache
	pricing      *pricing.Client
	orchestrator *transfer.Orchestrator
	submitter    *withdrawal.Submitter
	wallet       Wallet
	repo         models.Repository
	notificator  models.NotificationService

	mu          sync.RWMutex
	withdrawals map[string]models.TransferStatus

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOfframp creates a new Offramp instance
func NewOfframp(
	registry *registry.Registry,
	balances *balances.Cache,
	pricing *pricing.Client,
	orchestrator *transfer.Orchestrator,
	submitter *withdrawal.Submitter,
	wallet Wallet,
	repo models.Repository,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) *Offramp {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Offramp{
		logger:       logger,
		config:       config,
		registry:     registry,
		balances:     balances,
		pricing:      pricing,
		orchestrator: orchestrator,
		submitter:    submitter,
		wallet:       wallet,
		repo:         repo,
		notificator:  notificator,
		withdrawals:  make(map[string]models.TransferStatus),
		ctx:          ctx,
		cancel:       cancel,
	}

	wallet.OnAccountsChanged(func(accounts []common.Address) {
		o.logger.Warn("Wallet accounts changed", "accounts", len(accounts))
		for _, account := range accounts {
			o.balances.Invalidate(account)
		}
	})
	wallet.OnChainChanged(func(chainID int64) {
		o.logger.Info("Wallet chain changed", "chain_id", chainID)
	})

	return o
}

// Start starts the maintenance loop and cache refreshes
func (o *Offramp) Start() {
	if session := o.wallet.Session(); session.IsConnected {
		o.balances.Watch(session.Address)
	}
	o.balances.StartPeriodicRefresh()
	o.pricing.StartPeriodicRefresh(o.watchedSymbols(), o.config.PriceCacheTTL)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.maintain(time.Now())
			case <-o.ctx.Done():
				return
			}
		}
	}()
}

func (o *Offramp) maintain(now time.Time) {
	o.logger.Debug("Removing expired session locks")
	if err := o.repo.RemoveExpiredSessionLocks(now.Unix()); err != nil {
		o.logger.Error("Failed to remove expired session locks", "error", err)
	}
	cutoff := now.Add(-trackerRetention)
	if removed := o.orchestrator.Tracker().Prune(cutoff); removed > 0 {
		o.logger.Debug("Pruned finished transfers", "count", removed)
	}

	o.mu.Lock()
	for id, status := range o.withdrawals {
		if status.Step.IsTerminal() && status.UpdatedAt.Before(cutoff) {
			delete(o.withdrawals, id)
		}
	}
	o.mu.Unlock()
}

// Stop cancels background withdrawals, waits for them and for detached confirmations,
// then stops all loops
func (o *Offramp) Stop() {
	o.logger.Info("Stopping offramp service")
	o.cancel()
	o.wg.Wait()
	o.orchestrator.Wait()
	o.balances.Stop()
	o.pricing.Stop()
	o.logger.Info("Offramp service stopped")
}

func (o *Offramp) watchedSymbols() []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, id := range o.registry.ChainIDs() {
		for _, token := range o.registry.Tokens(id) {
			if _, ok := seen[token.Symbol]; ok {
				continue
			}
			seen[token.Symbol] = struct{}{}
			symbols = append(symbols, token.Symbol)
		}
	}
	return symbols
}

func (o *Offramp) Chains() []models.ChainDescriptor {
	return o.registry.Chains()
}

func (o *Offramp) Chain(chainID int64) (models.ChainDescriptor, bool) {
	return o.registry.Resolve(chainID)
}

func (o *Offramp) Tokens(chainID int64) []models.TokenDescriptor {
	return o.registry.Tokens(chainID)
}

func (o *Offramp) Balances(ctx context.Context, address common.Address, chainIDs []int64, sortByValue bool) models.BalanceSnapshot {
	snapshot := o.balances.Get(ctx, address, chainIDs)
	if sortByValue {
		balances.SortByValue(snapshot.Balances)
	}
	return snapshot
}

func (o *Offramp) Price(ctx context.Context, symbol string) (models.Price, error) {
	return o.pricing.Price(ctx, symbol)
}

func (o *Offramp) Quote(ctx context.Context, symbol string, inrAmount decimal.Decimal) (models.Quote, error) {
	return o.pricing.Quote(ctx, symbol, inrAmount)
}

func (o *Offramp) WalletSession() models.WalletSession {
	return o.wallet.Session()
}

// plan is a validated withdrawal ready to execute.
type plan struct {
	id          string
	token       models.TokenDescriptor
	tokenAmount string
	inrAmount   decimal.Decimal
	quote       *models.Quote
	bank        models.BankDetails
}

// prepare validates in and sizes the transfer. No funds move.
func (o *Offramp) prepare(ctx context.Context, in models.WithdrawalInput) (*plan, error) {
	token, err := o.registry.Token(in.ChainID, in.Symbol)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedChain) {
			return nil, models.NewError(models.ErrorKindConfiguration,
				fmt.Sprintf("No custody wallet configured for chain %d", in.ChainID), err)
		}
		return nil, models.NewError(models.ErrorKindValidation,
			fmt.Sprintf("Token %s is not supported on chain %d", in.Symbol, in.ChainID), err)
	}

	if err := validateBank(in.Bank); err != nil {
		return nil, err
	}

	p := &plan{id: in.ID, token: token, bank: in.Bank}
	if p.id == "" {
		p.id = uuid.NewString()
	}

	tokenAmount := strings.TrimSpace(in.TokenAmount)
	switch {
	case tokenAmount != "" && in.INRAmount.Sign() != 0:
		return nil, models.NewError(models.ErrorKindValidation, "Give either an INR amount or a token amount, not both", nil)
	case tokenAmount != "":
		amount, err := decimal.NewFromString(tokenAmount)
		if err != nil {
			return nil, models.NewError(models.ErrorKindValidation, "Amount is not a valid number", err)
		}
		price, err := o.pricing.Price(ctx, token.Symbol)
		if err != nil {
			return nil, models.NewError(models.ErrorKindValidation, fmt.Sprintf("No price available for %s", token.Symbol), err)
		}
		p.tokenAmount = tokenAmount
		p.inrAmount = amount.Mul(price.INR).Round(inrPrecision)
	case in.INRAmount.Sign() > 0:
		quote, err := o.pricing.Quote(ctx, token.Symbol, in.INRAmount)
		if err != nil {
			return nil, err
		}
		p.quote = &quote
		p.tokenAmount = quote.TokenAmount.String()
		p.inrAmount = in.INRAmount
	default:
		return nil, models.NewError(models.ErrorKindValidation, "Amount must be greater than zero", nil)
	}

	return p, nil
}

func validateBank(bank models.BankDetails) error {
	if strings.TrimSpace(bank.AccountHolderName) == "" {
		return models.NewError(models.ErrorKindValidation, "Account holder name is required", nil)
	}
	if err := validation.ValidateAccountNumber(bank.AccountNumber); err != nil {
		return models.NewError(models.ErrorKindValidation, "Invalid bank account number", err)
	}
	if err := validation.ValidateIFSC(bank.IFSCCode); err != nil {
		return models.NewError(models.ErrorKindValidation, "Invalid IFSC code", err)
	}
	return nil
}

// Withdraw quotes, transfers and registers the payout. The withdrawal is only
// submitted after the transfer is confirmed on-chain.
func (o *Offramp) Withdraw(ctx context.Context, in models.WithdrawalInput) (models.WithdrawalResult, error) {
	p, err := o.prepare(ctx, in)
	if err != nil {
		return models.WithdrawalResult{}, err
	}
	if err := o.claim(p); err != nil {
		return models.WithdrawalResult{}, err
	}
	return o.execute(ctx, p)
}

// StartWithdrawal validates in synchronously and runs the transfer and withdrawal in
// the background. Progress is available through Status.
func (o *Offramp) StartWithdrawal(ctx context.Context, in models.WithdrawalInput) (string, error) {
	p, err := o.prepare(ctx, in)
	if err != nil {
		return "", err
	}
	if err := o.claim(p); err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.execute(o.ctx, p); err != nil {
			o.logger.Warn("Background withdrawal failed", "id", p.id, "error", err)
		}
	}()
	return p.id, nil
}

// claim reserves the transfer id of p. An id seen before is refused so a retry
// never moves funds twice under one ledger row.
func (o *Offramp) claim(p *plan) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, used := o.withdrawals[p.id]
	if !used {
		_, used = o.orchestrator.Tracker().Get(p.id)
	}
	if !used {
		_, err := o.repo.GetTransfer(p.id)
		switch {
		case err == nil:
			used = true
		case !errors.Is(err, models.ErrTransferNotFound):
			return models.NewError(models.ErrorKindBackend, "Could not check transfer id", err)
		}
	}
	if used {
		return models.NewError(models.ErrorKindValidation, fmt.Sprintf("Transfer id %s is already used", p.id), nil)
	}

	o.withdrawals[p.id] = models.TransferStatus{TransferState: models.TransferState{
		ID:        p.id,
		Step:      models.StepIdle,
		ChainID:   p.token.ChainID,
		Symbol:    p.token.Symbol,
		Amount:    p.tokenAmount,
		UpdatedAt: time.Now(),
	}}
	return nil
}

func (o *Offramp) execute(ctx context.Context, p *plan) (models.WithdrawalResult, error) {
	session := o.wallet.Session()

	state, err := o.orchestrator.Execute(ctx, session, models.TransferRequest{
		ID:            p.id,
		Token:         p.token,
		AmountDecimal: p.tokenAmount,
		From:          session.Address,
		SwitchChain:   true,
	}, func(s models.TransferState) {
		o.setStatus(models.TransferStatus{TransferState: s})
	})

	if err == nil && !state.Step.IsTerminal() {
		// The caller left after broadcast. The payout still follows the confirmation.
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.settleDetached(session.Address, p, state.ID)
		}()
		return models.WithdrawalResult{Transfer: state, Quote: p.quote}, nil
	}
	return o.settle(context.WithoutCancel(ctx), session.Address, p, state, err)
}

func (o *Offramp) settleDetached(from common.Address, p *plan, id string) {
	final, err := o.orchestrator.Tracker().Await(context.Background(), id)
	if err != nil {
		o.logger.Error("Lost track of detached transfer", "id", id, "error", err)
		return
	}
	o.setStatus(models.TransferStatus{TransferState: final})

	var transferErr error
	if final.Step == models.StepError {
		transferErr = models.NewError(final.ErrorKind, final.Error, nil)
	}
	if _, err := o.settle(context.Background(), from, p, final, transferErr); err != nil {
		o.logger.Warn("Detached withdrawal failed", "id", id, "error", err)
	}
}

// settle registers the payout of a completed transfer, or alerts on a failed one
// that reached the chain.
func (o *Offramp) settle(ctx context.Context, from common.Address, p *plan, state models.TransferState, transferErr error) (models.WithdrawalResult, error) {
	result := models.WithdrawalResult{Transfer: state, Quote: p.quote}
	if transferErr != nil {
		if state.TransactionHash != "" {
			o.notify(&models.Notification{
				Kind:        models.NotificationTransferFailed,
				Wallet:      from.Hex(),
				Amount:      p.tokenAmount,
				Currency:    p.token.Symbol,
				ChainID:     p.token.ChainID,
				TxHash:      state.TransactionHash,
				ExplorerURL: state.ExplorerURL,
				Error:       state.Error,
			})
		}
		return result, transferErr
	}

	o.balances.Invalidate(from)

	withdrawalID, submitErr := o.submitter.Submit(ctx, state, models.WithdrawalRequest{
		UserAddress:  from,
		Token:        p.token,
		TokenAmount:  p.tokenAmount,
		ChainID:      p.token.ChainID,
		TransferHash: state.TransactionHash,
		INRAmount:    p.inrAmount.StringFixed(inrPrecision),
		Bank:         p.bank,
	})

	record := &models.WithdrawalRecord{
		WithdrawalID: withdrawalID,
		TransferID:   state.ID,
		UserAddress:  from.Hex(),
		TokenSymbol:  p.token.Symbol,
		TokenAmount:  p.tokenAmount,
		ChainID:      p.token.ChainID,
		TransferHash: state.TransactionHash,
		INRAmount:    p.inrAmount.StringFixed(inrPrecision),
		AccountLast4: validation.MaskAccountNumber(p.bank.AccountNumber),
		IFSCCode:     strings.ToUpper(p.bank.IFSCCode),
		Status:       models.WithdrawalStatusSubmitted,
		CreatedAt:    time.Now().Unix(),
	}
	if submitErr != nil {
		record.Status = models.WithdrawalStatusFailed
		record.Error = models.UserMessage(submitErr)
	}
	if err := o.repo.AddWithdrawal(record); err != nil {
		o.logger.Error("Failed to persist withdrawal", "transfer_id", state.ID, "error", err)
	}

	status := models.TransferStatus{TransferState: state, WithdrawalID: withdrawalID}
	if submitErr != nil {
		status.WithdrawalError = models.UserMessage(submitErr)
		result.WithdrawalError = status.WithdrawalError
		o.setStatus(status)
		o.notify(&models.Notification{
			Kind:        models.NotificationTransferFailed,
			Wallet:      from.Hex(),
			Amount:      p.tokenAmount,
			Currency:    p.token.Symbol,
			ChainID:     p.token.ChainID,
			TxHash:      state.TransactionHash,
			ExplorerURL: state.ExplorerURL,
			Error:       "Withdrawal not registered: " + status.WithdrawalError,
		})
		return result, submitErr
	}
	o.setStatus(status)

	result.WithdrawalID = withdrawalID
	o.notify(&models.Notification{
		Kind:         models.NotificationWithdrawalRegistered,
		Wallet:       from.Hex(),
		Amount:       p.tokenAmount,
		Currency:     p.token.Symbol,
		ChainID:      p.token.ChainID,
		TxHash:       state.TransactionHash,
		ExplorerURL:  state.ExplorerURL,
		WithdrawalID: withdrawalID,
		INRAmount:    record.INRAmount,
	})
	return result, nil
}

func (o *Offramp) notify(n *models.Notification) {
	if o.notificator == nil {
		return
	}
	o.notificator.SendNotification(n)
}

func (o *Offramp) setStatus(status models.TransferStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.withdrawals[status.ID]; ok && status.WithdrawalID == "" && status.WithdrawalError == "" {
		status.WithdrawalID = prev.WithdrawalID
		status.WithdrawalError = prev.WithdrawalError
	}
	o.withdrawals[status.ID] = status
}

// Status merges the latest transfer state with its withdrawal, falling back to the
// repository for transfers this process no longer tracks.
func (o *Offramp) Status(id string) (models.TransferStatus, error) {
	o.mu.RLock()
	status, ok := o.withdrawals[id]
	o.mu.RUnlock()

	if state, tracked := o.orchestrator.Tracker().Get(id); tracked {
		if !ok || state.UpdatedAt.After(status.UpdatedAt) {
			status.TransferState = state
		}
		ok = true
	}
	if ok {
		return status, nil
	}

	record, err := o.repo.GetTransfer(id)
	if err != nil {
		return models.TransferStatus{}, err
	}
	status = models.TransferStatus{TransferState: models.TransferState{
		ID:              record.ID,
		Step:            models.TransferStep(record.Step),
		TransactionHash: record.TxHash,
		Error:           record.Error,
		ErrorKind:       models.ErrorKind(record.ErrorKind),
		ChainID:         record.ChainID,
		Symbol:          record.Symbol,
		Amount:          record.Amount,
		UpdatedAt:       time.Unix(record.UpdatedAt, 0),
	}}
	if chain, found := o.registry.Resolve(record.ChainID); found {
		status.ExplorerURL = chain.ExplorerTxURL(record.TxHash)
	}

	withdrawal, err := o.repo.GetWithdrawalByTransferID(id)
	if err != nil {
		o.logger.Error("Failed to get withdrawal", "transfer_id", id, "error", err)
	} else if withdrawal != nil {
		status.WithdrawalID = withdrawal.WithdrawalID
		status.WithdrawalError = withdrawal.Error
	}
	return status, nil
}

// History returns up to limit of the latest transfers from address, newest first.
func (o *Offramp) History(address common.Address, limit int) ([]*models.TransferRecord, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	return o.repo.ListTransfersByAddress(address.Hex(), limit)
}

var _ models.OfframpI = (*Offramp)(nil)
