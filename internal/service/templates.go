package service

import (
	"context"
	"fmt"
	"strconv"

	"dispatch/internal/domain"
	"dispatch/internal/models"
)

const previewLen = 120

var orderStatusText = map[string]string{
	"ACCEPTED":   "Your order was accepted",
	"PREPARING":  "Your order is being prepared",
	"PICKED_UP":  "Your order was picked up",
	"ON_THE_WAY": "Your order is on the way",
	"DELIVERED":  "Your order was delivered",
	"CANCELLED":  "Your order was cancelled",
}

func orderURL(orderID uint) *string {
	u := "app://orders/" + strconv.FormatUint(uint64(orderID), 10)
	return &u
}

func (s *NotificationService) NotifyOrderUpdate(ctx context.Context, userID, orderID uint, status string) (*models.Notification, error) {
	body, ok := orderStatusText[status]
	if !ok {
		body = "Your order status changed to " + status
	}
	return s.Send(ctx, userID, Message{
		Type:      domain.NotificationOrder,
		Title:     fmt.Sprintf("Order #%d", orderID),
		Body:      body,
		Data:      map[string]any{"order_id": orderID, "status": status},
		ActionURL: orderURL(orderID),
	})
}

func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, customerID, orderID uint, driverName string) (*models.Notification, error) {
	return s.Send(ctx, customerID, Message{
		Type:      domain.NotificationOrder,
		Title:     "Driver assigned",
		Body:      driverName + " is delivering your order",
		Data:      map[string]any{"order_id": orderID, "driver_name": driverName},
		ActionURL: orderURL(orderID),
	})
}

// NotifySupportReply sends a shortened preview of the agent's reply.
func (s *NotificationService) NotifySupportReply(ctx context.Context, userID, ticketID uint, reply string) (*models.Notification, error) {
	url := "app://support/" + strconv.FormatUint(uint64(ticketID), 10)
	return s.Send(ctx, userID, Message{
		Type:      domain.NotificationSupport,
		Title:     "Support replied",
		Body:      preview(reply),
		Data:      map[string]any{"ticket_id": ticketID},
		ActionURL: &url,
	})
}

func (s *NotificationService) NotifyReward(ctx context.Context, userID uint, points int, reason string) (*models.Notification, error) {
	return s.Send(ctx, userID, Message{
		Type:  domain.NotificationReward,
		Title: "You earned " + strconv.Itoa(points) + " points",
		Body:  reason,
		Data:  map[string]any{"points": points},
	})
}

func (s *NotificationService) NotifyPromoCode(ctx context.Context, userID uint, code string, discountPercent int) (*models.Notification, error) {
	return s.Send(ctx, userID, Message{
		Type:  domain.NotificationPromotion,
		Title: fmt.Sprintf("%d%% off your next order", discountPercent),
		Body:  "Use code " + code + " at checkout",
		Data:  map[string]any{"code": code, "discount_percent": discountPercent},
	})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen-1]) + "…"
}
