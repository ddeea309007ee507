package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"storefront/internal/models"
)

// idempotencyNamespace scopes order idempotency keys to this application.
var idempotencyNamespace = uuid.MustParse("6f1c2a0e-4a55-4d0b-9a3e-5b1f0c7d2e81")

// OrderIdempotencyKey is stable for a transaction id.
func OrderIdempotencyKey(transactionID string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(transactionID)).String()
}

func pageQuery(page int) map[string]string {
	return map[string]string{"page": strconv.Itoa(page)}
}

func esc(s string) string {
	return url.PathEscape(s)
}

// Users

func (c *Client) UserRole(ctx context.Context, email string) (models.Role, error) {
	var out models.RoleResponse
	err := c.do(ctx, call{method: http.MethodGet, path: "/users/" + esc(email) + "/role", out: &out})
	if err != nil {
		return models.RoleUser, err
	}
	return models.ParseRole(out.Role), nil
}

func (c *Client) CreateUser(ctx context.Context, u models.User) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/users", body: u, out: &out})
	return out, err
}

func (c *Client) Users(ctx context.Context, page int) (models.Page[models.User], error) {
	var out models.Page[models.User]
	err := c.do(ctx, call{method: http.MethodGet, path: "/users", query: pageQuery(page), out: &out})
	return out, err
}

func (c *Client) UpdateUserRole(ctx context.Context, email string, role models.Role) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/users/role/" + esc(email),
		body:   models.RoleUpdate{Role: role},
		out:    &out,
	})
	return out, err
}

// Products

func (c *Client) ProductsPage(ctx context.Context, page int) (models.Page[models.Product], error) {
	var out models.Page[models.Product]
	err := c.do(ctx, call{method: http.MethodGet, path: "/products/products-paginated", query: pageQuery(page), out: &out})
	return out, err
}

func (c *Client) AllProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, call{method: http.MethodGet, path: "/products/all", out: &out})
	return out, err
}

func (c *Client) Product(ctx context.Context, id string) (models.Product, error) {
	var out models.Product
	err := c.do(ctx, call{method: http.MethodGet, path: "/products/" + esc(id), out: &out})
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, in models.ProductInput) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/products", body: in, out: &out})
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodPatch, path: "/products/update/" + esc(id), body: in, out: &out})
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodDelete, path: "/products/delete/" + esc(id), out: &out})
	return out, err
}

func (c *Client) Transaction(ctx context.Context, trxid string) (models.TransactionLookup, error) {
	var out models.TransactionLookup
	err := c.do(ctx, call{method: http.MethodGet, path: "/products/transaction/" + esc(trxid), out: &out})
	return out, err
}

// Orders

func (c *Client) OrdersPage(ctx context.Context, page int) (models.Page[models.Order], error) {
	var out models.Page[models.Order]
	err := c.do(ctx, call{method: http.MethodGet, path: "/orders/paginated-orders", query: pageQuery(page), out: &out})
	return out, err
}

func (c *Client) UserOrders(ctx context.Context, email string, page int) (models.Page[models.Order], error) {
	var out models.Page[models.Order]
	err := c.do(ctx, call{method: http.MethodGet, path: "/orders/user-orders/" + esc(email), query: pageQuery(page), out: &out})
	return out, err
}

func (c *Client) Order(ctx context.Context, id string) (models.Order, error) {
	var out models.Order
	err := c.do(ctx, call{method: http.MethodGet, path: "/orders/singleOrder/" + esc(id), out: &out})
	return out, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/orders/status/" + esc(id),
		body:   models.OrderStatusUpdate{Status: status},
		out:    &out,
	})
	return out, err
}

func (c *Client) DeleteOrder(ctx context.Context, id string) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodDelete, path: "/orders/delete/" + esc(id), out: &out})
	return out, err
}

// CreateOrder records a settled payment. The Idempotency-Key header lets the
// backend drop a replay of the same transaction.
func (c *Client) CreateOrder(ctx context.Context, o models.Order) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/orders",
		body:   o,
		header: map[string]string{"Idempotency-Key": OrderIdempotencyKey(o.TransactionID)},
		out:    &out,
	})
	return out, err
}

// Payments

func (c *Client) PaymentsPage(ctx context.Context, page int) (models.Page[models.Payment], error) {
	var out models.Page[models.Payment]
	err := c.do(ctx, call{method: http.MethodGet, path: "/ssl-payment/allPayment", query: pageQuery(page), out: &out})
	return out, err
}

func (c *Client) InitiatePayment(ctx context.Context, intent models.PaymentIntent) (models.GatewayResponse, error) {
	var out models.GatewayResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/ssl-payment", body: intent, out: &out})
	return out, err
}

// Dashboards

func (c *Client) AdminAggregate(ctx context.Context) (models.AdminAggregate, error) {
	var out models.AdminAggregate
	err := c.do(ctx, call{method: http.MethodGet, path: "/admin/aggregate-data", out: &out})
	return out, err
}

func (c *Client) UserAggregate(ctx context.Context, email string) (models.UserAggregate, error) {
	var out models.UserAggregate
	err := c.do(ctx, call{method: http.MethodGet, path: "/userDashboard/aggregate/" + esc(email), out: &out})
	return out, err
}

// Reviews and chat

func (c *Client) CreateReview(ctx context.Context, r models.Review) (models.MutationResult, error) {
	var out models.MutationResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/review", body: r, out: &out})
	return out, err
}

func (c *Client) Reviews(ctx context.Context) ([]models.Review, error) {
	var out []models.Review
	err := c.do(ctx, call{method: http.MethodGet, path: "/review/getAllData", out: &out})
	return out, err
}

func (c *Client) Chat(ctx context.Context, question string) (models.ChatResponse, error) {
	var out models.ChatResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/chatbot", body: models.ChatRequest{Question: question}, out: &out})
	return out, err
}
