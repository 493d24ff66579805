package models

import "github.com/ethereum/go-ethereum/common"

// BankDetails is where the INR payout goes.
type BankDetails struct {
	AccountNumber     string `json:"accountNumber" binding:"required"`
	IFSCCode          string `json:"ifscCode" binding:"required"`
	AccountHolderName string `json:"accountHolderName" binding:"required"`
	BankName          string `json:"bankName"`
}

// WithdrawalRequest carries the metadata of a confirmed transfer plus payout details.
type WithdrawalRequest struct {
	UserAddress  common.Address
	Token        TokenDescriptor
	TokenAmount  string
	ChainID      int64
	TransferHash string
	INRAmount    string
	Bank         BankDetails
}

// WithdrawalRecord is the local copy of a withdrawal registered with the backend.
type WithdrawalRecord struct {
	ID           int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	WithdrawalID string `json:"withdrawal_id" gorm:"column:withdrawal_id;index"`
	TransferID   string `json:"transfer_id" gorm:"column:transfer_id;uniqueIndex;size:36"`
	UserAddress  string `json:"user_address" gorm:"column:user_address;index"`
	TokenSymbol  string `json:"token_symbol" gorm:"column:token_symbol"`
	TokenAmount  string `json:"token_amount" gorm:"column:token_amount"`
	ChainID      int64  `json:"chain_id" gorm:"column:chain_id"`
	TransferHash string `json:"transfer_hash" gorm:"column:transfer_hash"`
	INRAmount    string `json:"inr_amount" gorm:"column:inr_amount"`
	// AccountLast4 keeps only the tail of the account number.
	AccountLast4 string `json:"account_last4" gorm:"column:account_last4"`
	IFSCCode     string `json:"ifsc_code" gorm:"column:ifsc_code"`
	Status       string `json:"status" gorm:"column:status;index"`
	Error        string `json:"error" gorm:"column:error"`
	CreatedAt    int64  `json:"created_at" gorm:"column:created_at;index"`
}

// TableName specifies the table name for GORM
func (WithdrawalRecord) TableName() string {
	return "withdrawal_records"
}

const (
	WithdrawalStatusSubmitted = "submitted"
	WithdrawalStatusFailed    = "failed"
)
