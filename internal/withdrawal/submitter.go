package withdrawal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/core-coin/offramp/internal/config"
	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/logger"
)

const initiatePath = "/withdrawal/initiate"

// InitiateRequest is the body of POST /withdrawal/initiate
type InitiateRequest struct {
	UserAddress  string             `json:"userAddress"`
	TokenSymbol  string             `json:"tokenSymbol"`
	TokenAmount  string             `json:"tokenAmount"`
	ChainID      int64              `json:"chainId"`
	TransferHash string             `json:"transferHash"`
	INRAmount    string             `json:"inrAmount"`
	BankDetails  models.BankDetails `json:"bankDetails"`
}

type initiateResponse struct {
	WithdrawalID string `json:"withdrawalId"`
	Error        string `json:"error"`
}

// Submitter registers INR payouts with the withdrawal backend
type Submitter struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

func NewSubmitter(logger *logger.Logger, config *config.Config) *Submitter {
	return &Submitter{
		logger:  logger,
		baseURL: strings.TrimRight(config.WithdrawalAPIURL, "/"),
		client: &http.Client{
			Timeout: config.WithdrawalTimeout,
		},
	}
}

// Submit registers a withdrawal for a confirmed transfer and returns the backend's
// withdrawal id. It refuses to run unless state is completed with a transaction hash,
// so a payout is never registered for a transfer that is not on-chain. It sends
// exactly one request; a non-2xx response surfaces the backend's error message verbatim.
func (s *Submitter) Submit(ctx context.Context, state models.TransferState, req models.WithdrawalRequest) (string, error) {
	if state.Step != models.StepCompleted || state.TransactionHash == "" {
		return "", models.NewError(models.ErrorKindValidation, "Transfer is not confirmed on-chain", nil)
	}
	if req.TransferHash == "" {
		req.TransferHash = state.TransactionHash
	}
	if !strings.EqualFold(req.TransferHash, state.TransactionHash) {
		return "", models.NewError(models.ErrorKindValidation, "Transfer hash does not match the confirmed transfer", nil)
	}
	if s.baseURL == "" {
		return "", models.NewError(models.ErrorKindConfiguration, "Withdrawal backend is not configured", nil)
	}

	body := InitiateRequest{
		UserAddress:  req.UserAddress.Hex(),
		TokenSymbol:  req.Token.Symbol,
		TokenAmount:  req.TokenAmount,
		ChainID:      req.ChainID,
		TransferHash: req.TransferHash,
		INRAmount:    req.INRAmount,
		BankDetails:  req.Bank,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal withdrawal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+initiatePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		metrics.RecordWithdrawal(models.WithdrawalStatusFailed)
		return "", models.NewError(models.ErrorKindBackend, "Withdrawal service unreachable", err)
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed initiateResponse
	decodeErr := json.Unmarshal(responseBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordWithdrawal(models.WithdrawalStatusFailed)
		message := parsed.Error
		if decodeErr != nil || message == "" {
			message = fmt.Sprintf("Withdrawal request failed with status %d", resp.StatusCode)
		}
		s.logger.Error("Withdrawal backend returned non-success status",
			"status", resp.StatusCode,
			"transfer_hash", req.TransferHash,
			"error", message,
		)
		return "", models.NewError(models.ErrorKindBackend, message, nil)
	}

	if decodeErr != nil || parsed.WithdrawalID == "" {
		metrics.RecordWithdrawal(models.WithdrawalStatusFailed)
		return "", models.NewError(models.ErrorKindBackend, "Withdrawal service returned no withdrawal id", decodeErr)
	}

	metrics.RecordWithdrawal(models.WithdrawalStatusSubmitted)
	s.logger.Info("Withdrawal registered",
		"withdrawal_id", parsed.WithdrawalID,
		"transfer_hash", req.TransferHash,
		"chain_id", req.ChainID,
	)
	return parsed.WithdrawalID, nil
}
