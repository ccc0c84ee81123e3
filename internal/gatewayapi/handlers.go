package gatewayapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/auth"
	"github.com/rustexchange/matchd/internal/engineops"
	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/wire"
)

// idempotencyHeader is the optional client-supplied retry key for
// POST /v1/orders: the engine never retries a store write on its own
// (§7), but a gateway client can retry after a timeout, and a second,
// distinct order_id minted for the same logical attempt isn't caught
// by the store's (order_id, exchange) primary key alone.
const idempotencyHeader = "Idempotency-Key"

// handlers groups the §6 HTTP surface's dependencies: the per-market
// RPC client registry and the account service issuing bearer tokens.
type handlers struct {
	registry   *ClientRegistry
	authSvc    *auth.Service
	validate   *validator.Validate
	logger     *zap.Logger
	rpcTimeout time.Duration

	// idempotency maps a client's retry key to the order_id minted for
	// its first successful attempt, so a retried POST within the
	// window replays the prior result instead of admitting twice.
	idempotency *cache.Cache
}

func newHandlers(registry *ClientRegistry, authSvc *auth.Service, logger *zap.Logger) *handlers {
	return &handlers{
		registry:    registry,
		authSvc:     authSvc,
		validate:    validator.New(),
		logger:      logger,
		rpcTimeout:  5 * time.Second,
		idempotency: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// login handles POST /v1/public/auth/login.
func (h *handlers) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// insertOrderRequest is the gateway-facing body for POST /v1/orders.
// Exchange names the target market and doubles as the routing key into
// the ClientRegistry.
type insertOrderRequest = matchengine.ClientOrder

// insertOrder handles POST /v1/orders.
func (h *handlers) insertOrder(c *gin.Context) {
	var body insertOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := auth.UserIDFromContext(c)
	idemKey := c.GetHeader(idempotencyHeader)
	if idemKey == "" {
		idemKey = uuid.NewString()
	} else if cached, ok := h.idempotency.Get(idemKey); ok {
		c.JSON(http.StatusOK, gin.H{"order_id": cached.(int64), "replayed": true})
		return
	}

	client, err := h.registry.Get(body.Exchange)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.rpcTimeout)
	defer cancel()

	var resp engineops.InsertOrderResponse
	req := engineops.InsertOrderRequest{UserID: userID, Order: body}
	if err := client.Call(ctx, engineops.OpInsertOrder, req, &resp); err != nil {
		h.writeRPCError(c, err)
		return
	}
	h.idempotency.Set(idemKey, resp.OrderID, cache.DefaultExpiration)
	c.JSON(http.StatusCreated, gin.H{"order_id": resp.OrderID})
}

// getUserOrders handles GET /v1/orders: it fans out to every configured
// market's engine and merges the results, since an order id alone
// doesn't name its market.
func (h *handlers) getUserOrders(c *gin.Context) {
	userID := auth.UserIDFromContext(c)
	markets := h.registry.Markets()

	type marketOrders struct {
		Market   string  `json:"market"`
		OrderIDs []int64 `json:"order_ids"`
		Err      string  `json:"error,omitempty"`
	}
	results := make([]marketOrders, len(markets))

	var wg sync.WaitGroup
	for i, market := range markets {
		wg.Add(1)
		go func(i int, market string) {
			defer wg.Done()
			results[i] = marketOrders{Market: market}

			client, err := h.registry.Get(market)
			if err != nil {
				results[i].Err = err.Error()
				return
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), h.rpcTimeout)
			defer cancel()

			var resp engineops.GetUserOrdersResponse
			req := engineops.GetUserOrdersRequest{UserID: userID}
			if err := client.Call(ctx, engineops.OpGetUserOrders, req, &resp); err != nil {
				h.logger.Warn("getUserOrders: market fan-out call failed",
					zap.String("market", market), zap.Error(err))
				results[i].Err = "unavailable"
				return
			}
			results[i].OrderIDs = resp.OrderIDs
		}(i, market)
	}
	wg.Wait()

	merged := make([]int64, 0, len(markets))
	for _, r := range results {
		merged = append(merged, r.OrderIDs...)
	}
	c.JSON(http.StatusOK, gin.H{"order_ids": merged, "markets": results})
}

// getOrderProgress handles GET /v1/:market/:order_id.
func (h *handlers) getOrderProgress(c *gin.Context) {
	market := c.Param("market")
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be an integer"})
		return
	}
	client, err := h.registry.Get(market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.rpcTimeout)
	defer cancel()

	var resp engineops.GetOrderProgressResponse
	req := engineops.GetOrderProgressRequest{UserID: auth.UserIDFromContext(c), OrderID: orderID}
	if err := client.Call(ctx, engineops.OpGetOrderProgress, req, &resp); err != nil {
		h.writeRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// tryDeleteOrder handles DELETE /v1/:market/:order_id.
func (h *handlers) tryDeleteOrder(c *gin.Context) {
	market := c.Param("market")
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be an integer"})
		return
	}
	client, err := h.registry.Get(market)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.rpcTimeout)
	defer cancel()

	var resp engineops.TryDeleteOrderResponse
	req := engineops.TryDeleteOrderRequest{UserID: auth.UserIDFromContext(c), OrderID: orderID}
	if err := client.Call(ctx, engineops.OpTryDeleteOrder, req, &resp); err != nil {
		h.writeRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": resp.Removed})
}

// writeRPCError translates an error returned across the wire fabric
// into the matching HTTP status, per spec §7's Kind -> status family.
// A *wire.ErrorPayload carries the typed Kind set by the engine's
// xerrors.Error; anything else (framing failure, dial failure, a
// connection dropped by the engine process) is reported as a 502, since the
// gateway itself didn't generate it but it isn't a client mistake
// either.
func (h *handlers) writeRPCError(c *gin.Context, err error) {
	payload, ok := err.(*wire.ErrorPayload)
	if !ok {
		h.logger.Error("engine rpc call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream match engine unavailable"})
		return
	}

	status := http.StatusInternalServerError
	switch payload.Kind {
	case "user_facing":
		status = http.StatusBadRequest
		if payload.Code == "not_found" {
			status = http.StatusNotFound
		}
	case "authorization":
		status = http.StatusUnauthorized
		if payload.Code == "forbidden" {
			status = http.StatusForbidden
		}
	}
	c.JSON(status, gin.H{"error": payload.Message, "code": payload.Code, "trace_id": payload.TraceID})
}
