package models

import (
	"fmt"
	"strings"
)

type NotificationKind string

const (
	NotificationWithdrawalRegistered NotificationKind = "withdrawal_registered"
	NotificationTransferFailed       NotificationKind = "transfer_failed"
)

type Notification struct {
	Kind         NotificationKind `json:"kind"`
	Wallet       string           `json:"wallet"`
	Amount       string           `json:"amount"`
	Currency     string           `json:"currency"`
	ChainID      int64            `json:"chain_id"`
	TxHash       string           `json:"tx_hash"`
	ExplorerURL  string           `json:"explorer_url"`
	WithdrawalID string           `json:"withdrawal_id,omitempty"`
	INRAmount    string           `json:"inr_amount,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// String renders the notification as a chat message.
func (n *Notification) String() string {
	var b strings.Builder
	switch n.Kind {
	case NotificationWithdrawalRegistered:
		b.WriteString("Withdrawal registered\n")
		fmt.Fprintf(&b, "ID: %s\n", n.WithdrawalID)
		if n.INRAmount != "" {
			fmt.Fprintf(&b, "Payout: %s INR\n", n.INRAmount)
		}
	case NotificationTransferFailed:
		b.WriteString("Transfer failed after broadcast\n")
		fmt.Fprintf(&b, "Error: %s\n", n.Error)
	default:
		fmt.Fprintf(&b, "%s\n", n.Kind)
	}
	fmt.Fprintf(&b, "Wallet: %s\n", n.Wallet)
	fmt.Fprintf(&b, "Amount: %s %s (chain %d)\n", n.Amount, n.Currency, n.ChainID)
	if n.ExplorerURL != "" {
		fmt.Fprintf(&b, "Tx: %s", n.ExplorerURL)
	} else {
		fmt.Fprintf(&b, "Tx: %s", n.TxHash)
	}
	return b.String()
}
