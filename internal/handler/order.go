package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), middleware.GetPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) RepeatOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Repeat(c.Request.Context(), middleware.GetPrincipal(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.List(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), middleware.GetPrincipal(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// --- admin ---

func (h *OrderHandler) AdminList(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	orders, err := h.orderService.AdminList(c.Request.Context(), middleware.GetPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) AdminCreate(c *gin.Context) {
	var req dto.AdminCreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orderService.AdminCreate(c.Request.Context(), middleware.GetPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) AdminUpdate(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orderService.AdminUpdate(c.Request.Context(), middleware.GetPrincipal(c), orderID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) AdminDelete(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.AdminDelete(c.Request.Context(), middleware.GetPrincipal(c), orderID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toOrderListResponse(orders []model.Order) dto.OrderListResponse {
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return dto.OrderListResponse{Orders: items, Total: len(items)}
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	return dto.OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		OrderDate:       order.OrderDate,
		DeliveryAddress: order.DeliveryAddress,
		ReceiverPhone:   order.ReceiverPhone,
		Items:           items,
		TotalAmount:     order.TotalAmount,
		OrderStatus:     order.OrderStatus,
		PaymentStatus:   order.PaymentStatus,
		UpdatedAt:       order.UpdatedAt,
	}
}
