package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferStep is the state of a transfer in the orchestrator's linear state machine.
type TransferStep string

const (
	StepIdle         TransferStep = "idle"
	StepValidating   TransferStep = "validating"
	StepPreparing    TransferStep = "preparing" // ERC-20 only: decimals resolution and scaling
	StepTransferring TransferStep = "transferring"
	StepConfirming   TransferStep = "confirming"
	StepCompleted    TransferStep = "completed"
	StepError        TransferStep = "error"
)

// IsTerminal reports whether no further transitions follow.
func (s TransferStep) IsTerminal() bool {
	return s == StepCompleted || s == StepError
}

// TransferRequest asks for AmountDecimal of Token to move from From to To.
// A retry must build a new request.
type TransferRequest struct {
	// ID identifies the attempt. Generated when empty.
	ID            string
	Token         TokenDescriptor
	AmountDecimal string
	From          common.Address
	// To is the custody address of Token.ChainID. Filled from the registry when zero.
	To common.Address
	// SwitchChain lets the orchestrator move a wallet on another chain to Token.ChainID
	// instead of failing with a network mismatch.
	SwitchChain bool
}

// TransferState is one snapshot of an in-flight or finished transfer.
type TransferState struct {
	ID              string       `json:"id"`
	Step            TransferStep `json:"step"`
	TransactionHash string       `json:"transaction_hash,omitempty"`
	Error           string       `json:"error,omitempty"`
	ErrorKind       ErrorKind    `json:"error_kind,omitempty"`
	ChainID         int64        `json:"chain_id"`
	Symbol          string       `json:"symbol"`
	Amount          string       `json:"amount"`
	ExplorerURL     string       `json:"explorer_url,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TransferRecord is the persisted form of a transfer attempt.
type TransferRecord struct {
	ID           string `json:"id" gorm:"column:id;primaryKey;size:36"`
	ChainID      int64  `json:"chain_id" gorm:"column:chain_id;index"`
	Symbol       string `json:"symbol" gorm:"column:symbol"`
	TokenAddress string `json:"token_address" gorm:"column:token_address"`
	Amount       string `json:"amount" gorm:"column:amount"`
	FromAddress  string `json:"from_address" gorm:"column:from_address;index"`
	ToAddress    string `json:"to_address" gorm:"column:to_address"`
	Step         string `json:"step" gorm:"column:step;index"`
	TxHash       string `json:"tx_hash" gorm:"column:tx_hash;index"`
	Error        string `json:"error" gorm:"column:error"`
	ErrorKind    string `json:"error_kind" gorm:"column:error_kind"`
	CreatedAt    int64  `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt    int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (TransferRecord) TableName() string {
	return "transfer_records"
}
