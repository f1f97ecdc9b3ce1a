package handler

import (
	"net/http"
	"strings"

	"marketim/internal/config"
	"marketim/internal/middleware"
	"marketim/internal/usecase"

	"github.com/labstack/echo/v4"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// 明細はproduct_id / productId / product.id のどれでも受ける。
type OrderItemRequest struct {
	ProductID      *int64            `json:"product_id"`
	ProductIDCamel *int64            `json:"productId"`
	Product        *OrderItemProduct `json:"product"`
	Quantity       *int64            `json:"quantity"`
}

type OrderItemProduct struct {
	ID *int64 `json:"id"`
}

type GuestInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type OrderCreateRequest struct {
	Items           []OrderItemRequest `json:"items"`
	DeliveryAddress string             `json:"delivery_address"`
	ContactPhone    string             `json:"contact_phone"`
	PaymentMethod   string             `json:"payment_method"`
	Note            string             `json:"note"`
	GuestName       string             `json:"guest_name"`
	GuestEmail      string             `json:"guest_email"`
	GuestInfo       *GuestInfo         `json:"guest_info"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//注文作成はゲストも可。それ以外はログイン必須
	e.POST("/orders", h.create, middleware.OptionalAuthJWT(cfg))

	auth := middleware.AuthJWT(cfg)
	e.GET("/orders", h.list, auth)
	e.GET("/orders/:id", h.detail, auth)
	e.POST("/orders/:id/cancel", h.cancel, auth)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in, ok := req.toInput()
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid items"})
	}
	if userID, ok := getUserIDFromContext(c); ok {
		in.CustomerID = &userID
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	in.IdempotencyKey = c.Request().Header.Get(HeaderIdempotencyKey)

	out, err := h.uc.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// toInput は揺れのあるbodyを正規形にそろえる。
// product idが1つも取れない明細があればfalse。
func (r OrderCreateRequest) toInput() (usecase.PlaceOrderInput, bool) {
	in := usecase.PlaceOrderInput{
		DeliveryAddress: r.DeliveryAddress,
		ContactPhone:    r.ContactPhone,
		PaymentMethod:   r.PaymentMethod,
		Note:            r.Note,
		GuestName:       r.GuestName,
		GuestEmail:      r.GuestEmail,
		Items:           make([]usecase.PlaceOrderItem, 0, len(r.Items)),
	}

	if g := r.GuestInfo; g != nil {
		in.GuestName = firstNonBlank(in.GuestName, g.Name)
		in.GuestEmail = firstNonBlank(in.GuestEmail, g.Email)
		in.ContactPhone = firstNonBlank(in.ContactPhone, g.Phone)
		in.DeliveryAddress = firstNonBlank(in.DeliveryAddress, g.Address)
	}

	for _, it := range r.Items {
		id, ok := it.productID()
		if !ok {
			return usecase.PlaceOrderInput{}, false
		}
		var qty int64
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		in.Items = append(in.Items, usecase.PlaceOrderItem{ProductID: id, Quantity: qty})
	}
	return in, true
}

func (it OrderItemRequest) productID() (int64, bool) {
	switch {
	case it.ProductID != nil:
		return *it.ProductID, true
	case it.ProductIDCamel != nil:
		return *it.ProductIDCamel, true
	case it.Product != nil && it.Product.ID != nil:
		return *it.Product.ID, true
	default:
		return 0, false
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.CancelMyOrder(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
