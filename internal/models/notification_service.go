package models

type NotificationService interface {
	SendNotification(notification *Notification)
}
