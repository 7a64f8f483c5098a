package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/link"
	"github.com/antonminaichev/cashback-ledger/internal/order"
	"github.com/antonminaichev/cashback-ledger/internal/ratelimit"
	"github.com/antonminaichev/cashback-ledger/internal/storage/memory"
	ledgertypes "github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	wtypes "github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/antonminaichev/cashback-ledger/internal/user/admin"
	"github.com/antonminaichev/cashback-ledger/internal/withdrawal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("router-secret")

type testServer struct {
	srv   *httptest.Server
	store *memory.Storage
	admin string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	userSvc := user.NewService(store, secret, time.Hour)
	_, err := userSvc.EnsureAdmin(context.Background(), "root", "Root#Pass1")
	require.NoError(t, err)
	sess, err := userSvc.Authenticate(context.Background(), "root", "Root#Pass1")
	require.NoError(t, err)

	network := affiliate.NewStub()
	withdrawalSvc := withdrawal.NewService(store)
	r := NewRouter(Handlers{
		User:       user.NewHandler(userSvc),
		Ledger:     ledger.NewHandler(ledger.NewService(store)),
		Withdrawal: withdrawal.NewHandler(withdrawalSvc, withdrawal.NewGateway(withdrawalSvc)),
		Link:       link.NewHandler(link.NewService(store, network, "http://short.test")),
		Order:      order.NewHandler(order.NewService(store, store)),
		Users:      admin.NewHandler(userSvc),
	}, ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, 3), secret, store)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store, admin: sess.Token}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) register(t *testing.T, login string) (string, int64) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/user/register", "", map[string]string{"login": login, "password": "Password#123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	u, err := ts.store.FindByLogin(context.Background(), login)
	require.NoError(t, err)
	return resp.Header.Get("Authorization"), u.ID
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestWithdrawalFlow(t *testing.T) {
	ts := newTestServer(t)
	root := "Bearer " + ts.admin
	token, id := ts.register(t, "alice")
	accountPath := "/api/admin/accounts/" + strconv.FormatInt(id, 10)

	resp := ts.do(t, http.MethodPost, accountPath+"/bonus", root, ledgertypes.AdjustRequest{Amount: 200_000, Note: "welcome"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/user/withdrawals", token, wtypes.WithdrawRequest{
		Amount: 80_000, BankName: "VCB", AccountNumber: "0011", AccountHolder: "ALICE",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[wtypes.WithdrawResponse](t, resp)
	assert.Equal(t, wtypes.StatusPending, created.Status)

	resp = ts.do(t, http.MethodGet, "/api/user/balance", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ledgertypes.BalanceDTO{Available: 120_000, Locked: 80_000}, decode[ledgertypes.BalanceDTO](t, resp))

	decision := "/api/admin/withdrawals/" + created.WithdrawalID.String()
	resp = ts.do(t, http.MethodPost, decision+"/approve", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, decision+"/approve", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wtypes.StatusCompleted, decode[wtypes.StatusResponse](t, resp).Status)

	resp = ts.do(t, http.MethodPost, decision+"/reject", root, wtypes.RejectRequest{Reason: "late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/user/balance", token, nil)
	assert.Equal(t, ledgertypes.BalanceDTO{Available: 120_000}, decode[ledgertypes.BalanceDTO](t, resp))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/user/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/admin/withdrawals", "Bearer not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWithdrawalRateLimit(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "bob")

	body := wtypes.WithdrawRequest{Amount: 60_000, BankName: "VCB", AccountNumber: "1", AccountHolder: "BOB"}
	for i := 0; i < 3; i++ {
		resp := ts.do(t, http.MethodPost, "/api/user/withdrawals", token, body)
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	}
	resp := ts.do(t, http.MethodPost, "/api/user/withdrawals", token, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// other routes are not limited
	resp = ts.do(t, http.MethodGet, "/api/user/withdrawals", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLinkRedirect(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "carol")

	resp := ts.do(t, http.MethodPost, "/api/user/links", token, map[string]string{"url": "https://shopee.vn/item/1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gen := decode[map[string]string](t, resp)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	res, err := client.Get(ts.srv.URL + "/r/" + gen["short_code"])
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, gen["affiliate_url"], res.Header.Get("Location"))
}

func TestAdminUserManagement(t *testing.T) {
	ts := newTestServer(t)
	root := "Bearer " + ts.admin
	token, id := ts.register(t, "dave")
	userPath := "/api/admin/users/" + strconv.FormatInt(id, 10)

	resp := ts.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/admin/users", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 2)

	resp = ts.do(t, http.MethodPost, userPath+"/ban", root, map[string]bool{"banned": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BANNED", decode[map[string]any](t, resp)["status"])

	// the token issued before the ban stops working
	resp = ts.do(t, http.MethodGet, "/api/user/balance", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/user/login", "", map[string]string{"login": "dave", "password": "Password#123"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, userPath+"/ban", root, map[string]bool{"banned": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, userPath+"/password", root, map[string]string{"password": "weak"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, userPath+"/password", root, map[string]string{"password": "Fresh!Pass9"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/user/login", "", map[string]string{"login": "dave", "password": "Password#123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/user/login", "", map[string]string{"login": "dave", "password": "Fresh!Pass9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/user/balance", resp.Header.Get("Authorization"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/admin/users/999/ban", root, map[string]bool{"banned": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminWithdrawalQueueEmpty(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/admin/withdrawals", "Bearer "+ts.admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
