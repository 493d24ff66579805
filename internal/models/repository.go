package models

import "time"

type Repository interface {
	SaveTransfer(*TransferRecord) error
	GetTransfer(id string) (*TransferRecord, error)
	ListTransfersByAddress(address string, limit int) ([]*TransferRecord, error)

	AddWithdrawal(*WithdrawalRecord) error
	GetWithdrawalByTransferID(transferID string) (*WithdrawalRecord, error)

	AcquireSessionLock(name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseSessionLock(name, instanceID string) error
	RemoveExpiredSessionLocks(timestamp int64) error
}
