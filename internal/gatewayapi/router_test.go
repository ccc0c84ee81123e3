package gatewayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/auth"
	"github.com/rustexchange/matchd/internal/engineops"
	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/store/memstore"
	"github.com/rustexchange/matchd/internal/wire"
)

func startTestEngineServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	book := matchengine.NewBook("BTC_USD", -1, -1)
	st := memstore.New()
	engine := matchengine.New("BTC_USD", book, st, zap.NewNop())

	srv := wire.NewServer(addr, 16, zap.NewNop())
	engineops.RegisterHandlers(srv, engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("engine server at %s never came up", addr)
	return ""
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	addr := startTestEngineServer(t)
	registry := NewClientRegistry(map[string]string{"BTC_USD": addr})
	authSvc := auth.NewService(auth.JWTConfig{SecretKey: "s", TokenDuration: time.Hour, Issuer: "matchd"}, zap.NewNop())
	_, err := authSvc.Register(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	return NewRouter(registry, authSvc, zap.NewNop(), false), addr
}

func loginAndGetToken(t *testing.T, r http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/v1/public/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func TestRouter_Login_RejectsBadCredentials(t *testing.T) {
	r, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/v1/public/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Orders_RequiresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?market=BTC_USD", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_InsertOrderThenListAndCancel(t *testing.T) {
	r, _ := newTestRouter(t)
	token := loginAndGetToken(t, r)

	orderBody, _ := json.Marshal(map[string]any{
		"price": 100, "quantity": 5, "exchange": "BTC_USD", "orderType": 0,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader(orderBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		OrderID int64 `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	listReq := httptest.NewRequest(http.MethodGet, "/v1/orders?market=BTC_USD", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listed struct {
		OrderIDs []int64 `json:"order_ids"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	assert.Contains(t, listed.OrderIDs, created.OrderID)

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/BTC_USD/"+itoa(created.OrderID), nil)
	delReq.Header.Set("Authorization", "Bearer "+token)
	delRec := httptest.NewRecorder()
	r.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	var deleted struct {
		Removed bool `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(delRec.Body.Bytes(), &deleted))
	assert.True(t, deleted.Removed)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
