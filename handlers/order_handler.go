package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"order-system/internal/status"
	"order-system/models"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID, ticketID int64) (*models.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	GetOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Register(e *echo.Echo, jwtSecret string) {
	g := e.Group("/api/orders", RequireAuth(jwtSecret))
	g.POST("", h.CreateOrder)
	g.GET("", h.GetOrders)
	g.GET("/:id", h.GetOrder)
	g.PATCH("/:id", h.CancelOrder)
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized.")
	}

	// clients send ticketId as either a number or a numeric string
	var req struct {
		TicketID any `json:"ticketId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ticketId.")
	}
	ticketID, ok := parseTicketID(req.TicketID)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ticketId.")
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), userID, ticketID)
	switch {
	case errors.Is(err, status.ErrInvalidTicketID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ticketId.")
	case errors.Is(err, status.ErrTicketNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Ticket not found.")
	case errors.Is(err, status.ErrTicketReserved):
		return echo.NewHTTPError(http.StatusBadRequest, "Ticket is already reserved.")
	case err != nil:
		slog.Error("create order", "user", userID, "ticket", ticketID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Creating Order failed.")
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Order created.",
		"order":   order,
	})
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized.")
	}

	orders, err := h.orders.GetOrders(c.Request().Context(), userID)
	if err != nil {
		slog.Error("list orders", "user", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Listing Orders failed.")
	}
	return c.JSON(http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized.")
	}
	orderID, err := strconv.ParseInt(c.PathParam("id"), 10, 64)
	if err != nil || orderID <= 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	}

	order, err := h.orders.GetOrder(c.Request().Context(), userID, orderID)
	switch {
	case errors.Is(err, status.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	case errors.Is(err, status.ErrNotOrderOwner):
		// deliberately generic: do not reveal the order exists
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized.")
	case err != nil:
		slog.Error("get order", "user", userID, "order", orderID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Getting Order failed.")
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized.")
	}
	orderID, err := strconv.ParseInt(c.PathParam("id"), 10, 64)
	if err != nil || orderID <= 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	}

	order, err := h.orders.CancelOrder(c.Request().Context(), userID, orderID)
	switch {
	case errors.Is(err, status.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	case errors.Is(err, status.ErrNotOrderOwner):
		return echo.NewHTTPError(http.StatusUnauthorized, "You are not authorized to cancel this order.")
	case err != nil:
		slog.Error("cancel order", "user", userID, "order", orderID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Updating Order status failed.")
	}
	return c.JSON(http.StatusOK, order)
}

func parseTicketID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
