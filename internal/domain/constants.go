package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleDriver   = "DRIVER"
	RoleAdmin    = "ADMIN"
)

// Notification kinds. Clients use them for routing and display only.
const (
	NotificationOrder     = "ORDER"
	NotificationPromotion = "PROMOTION"
	NotificationChat      = "CHAT"
	NotificationSupport   = "SUPPORT"
	NotificationReward    = "REWARD"
	NotificationSystem    = "SYSTEM"
)

// NotificationKinds is the closed set accepted by the repository.
var NotificationKinds = []string{
	NotificationOrder,
	NotificationPromotion,
	NotificationChat,
	NotificationSupport,
	NotificationReward,
	NotificationSystem,
}

// EventNotification is the live-connection event name carrying a new notification.
const EventNotification = "notification"
