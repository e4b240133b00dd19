// dto.go
package dto

import "cart-order-service/internal/model"

type CartItemDTO struct {
	ProductID string  `json:"productId" binding:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" binding:"min=0"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity" binding:"min=1"`
}

// SyncCartRequest replaces the in-cart order wholesale. An empty item list
// deletes it. RequiresInvoice is a pointer on purpose: nil preserves the
// stored preference, so an unrelated cart sync cannot silently clear it.
type SyncCartRequest struct {
	Items           []CartItemDTO `json:"items"`
	RequiresInvoice *bool         `json:"requiresInvoice"`
}

func (r SyncCartRequest) ToItems() []model.OrderItem {
	out := make([]model.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}
	return out
}

type QuoteRequest struct {
	Coins int64 `json:"coins" binding:"min=0"`
}

type BeginCheckoutRequest struct {
	Coins int64 `json:"coins" binding:"min=0"`
}

type AbandonCheckoutRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type UpdateDeliveryRequest struct {
	DeliveryStatus string `json:"deliveryStatus" binding:"required"`
}

type SetBalanceRequest struct {
	Balance int64 `json:"balance" binding:"min=0"`
}

type WalletResponse struct {
	Balance int64 `json:"balance"`
}

type PinTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}
