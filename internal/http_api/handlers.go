package http_api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/core-coin/offramp/internal/metrics"
	"github.com/core-coin/offramp/internal/models"
	"github.com/core-coin/offramp/pkg/validation"
)

// ChainResponse is a supported chain with its token list
type ChainResponse struct {
	models.ChainDescriptor
	Tokens []models.TokenDescriptor `json:"tokens"`
}

// WithdrawResponse is returned when a withdrawal is accepted for background processing
type WithdrawResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status_url"`
}

// statusFor maps an error kind to the HTTP status reported to clients.
func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindConfiguration, models.ErrorKindNetworkMismatch, models.ErrorKindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case models.ErrorKindTransferInProgress, models.ErrorKindUserRejected:
		return http.StatusConflict
	case models.ErrorKindConnection:
		return http.StatusServiceUnavailable
	case models.ErrorKindProvider, models.ErrorKindBackend:
		return http.StatusBadGateway
	case models.ErrorKindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case models.ErrorKindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   models.UserMessage(err),
		"kind":    models.KindOf(err),
	})
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) serveMetrics(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// chains lists every supported chain.
func (s *HTTPServer) chains(c *gin.Context) {
	chains := s.offramp.Chains()
	response := make([]ChainResponse, 0, len(chains))
	for _, chain := range chains {
		response = append(response, ChainResponse{ChainDescriptor: chain, Tokens: s.offramp.Tokens(chain.ChainID)})
	}
	c.JSON(http.StatusOK, response)
}

func (s *HTTPServer) chain(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "chain id must be a number"})
		return
	}

	chain, ok := s.offramp.Chain(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "chain not supported"})
		return
	}
	c.JSON(http.StatusOK, ChainResponse{ChainDescriptor: chain, Tokens: s.offramp.Tokens(id)})
}

// balances returns the positive balances of an address.
// Query: chains=1,137 limits the chains, sort=value orders by USD value.
func (s *HTTPServer) balances(c *gin.Context) {
	address, err := validation.ValidateAndNormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid address format: " + err.Error()})
		return
	}

	var chainIDs []int64
	if raw := c.Query("chains"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "chains must be a comma separated list of chain ids"})
				return
			}
			chainIDs = append(chainIDs, id)
		}
	}

	snapshot := s.offramp.Balances(c.Request.Context(), address, chainIDs, c.Query("sort") == "value")
	c.JSON(http.StatusOK, snapshot)
}

func (s *HTTPServer) price(c *gin.Context) {
	price, err := s.offramp.Price(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		if errors.Is(err, models.ErrPriceUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "price not available"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// quote converts an INR amount into a token amount.
func (s *HTTPServer) quote(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "symbol is required"})
		return
	}
	inr, err := decimal.NewFromString(c.Query("inr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "inr must be a number"})
		return
	}

	quote, err := s.offramp.Quote(c.Request.Context(), symbol, inr)
	if err != nil {
		if errors.Is(err, models.ErrPriceUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "price not available"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *HTTPServer) wallet(c *gin.Context) {
	c.JSON(http.StatusOK, s.offramp.WalletSession())
}

// withdraw starts a withdrawal. By default it is processed in the background and
// 202 is returned with the transfer id; wait=true blocks until it is finished.
func (s *HTTPServer) withdraw(c *gin.Context) {
	var in models.WithdrawalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if c.Query("wait") == "true" {
		result, err := s.offramp.Withdraw(c.Request.Context(), in)
		if err != nil {
			status := statusFor(err)
			s.logger.Info("Withdrawal failed", "id", result.Transfer.ID, "error", err)
			c.JSON(status, gin.H{
				"success": false,
				"error":   models.UserMessage(err),
				"kind":    models.KindOf(err),
				"result":  result,
			})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	id, err := s.offramp.StartWithdrawal(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("Withdrawal accepted", "id", id, "chain_id", in.ChainID, "symbol", in.Symbol)
	c.JSON(http.StatusAccepted, WithdrawResponse{
		Success: true,
		ID:      id,
		Status:  "/api/v1/transfers/" + id,
	})
}

func (s *HTTPServer) transferStatus(c *gin.Context) {
	status, err := s.offramp.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transfer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to get transfer"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// history lists recent transfers of an address. Query: limit (default 20).
func (s *HTTPServer) history(c *gin.Context) {
	address, err := validation.ValidateAndNormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid address format: " + err.Error()})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive number"})
			return
		}
	}

	records, err := s.offramp.History(address, limit)
	if err != nil {
		s.logger.Error("Failed to list transfers", "address", address.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list transfers"})
		return
	}
	c.JSON(http.StatusOK, records)
}
