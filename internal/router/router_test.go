package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/apiclient"
	"storefront/internal/config"
	"storefront/internal/services"
	"storefront/internal/session"
)

const orderID = "64b000000000000000000101"

type fakeProvider struct {
	mu     sync.Mutex
	tokens map[string]session.User
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (session.Credentials, error) {
	if password != "secret" {
		return session.Credentials{}, session.ErrInvalidCredentials
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	tok := "tok-" + email
	p.tokens[tok] = session.User{UID: "uid-" + email, Email: email, DisplayName: strings.Split(email, "@")[0]}
	return session.Credentials{IDToken: tok, RefreshToken: "rt-" + email, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string, _ session.Profile) (session.Credentials, error) {
	return p.SignIn(ctx, email, password)
}

func (p *fakeProvider) Refresh(context.Context, string) (session.Credentials, error) {
	return session.Credentials{}, session.ErrInvalidToken
}

func (p *fakeProvider) Verify(_ context.Context, tok string) (session.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.tokens[tok]; ok {
		return u, nil
	}
	return session.User{}, session.ErrInvalidToken
}

func (p *fakeProvider) UpdateProfile(_ context.Context, uid string, profile session.Profile) (session.User, error) {
	return session.User{UID: uid, DisplayName: profile.DisplayName, PhotoURL: profile.PhotoURL}, nil
}

func (p *fakeProvider) SignOut(context.Context, string) error { return nil }

// fakeBackend answers the REST endpoints the storefront calls and counts
// the mutations it receives.
type fakeBackend struct {
	mu      sync.Mutex
	created int
	deleted int
}

func (b *fakeBackend) counts() (created, deleted int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created, b.deleted
}

func (b *fakeBackend) handler() http.Handler {
	roles := map[string]string{"admin@shop.io": "admin", "ada@shop.io": "user"}
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}

	mux.HandleFunc("GET /users/{email}/role", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"role": roles[r.PathValue("email")]})
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"data":[{"displayName":"Ada","email":"ada@shop.io","role":"user"}],"total":1,"limit":10}`)
	})
	mux.HandleFunc("GET /products/products-paginated", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"data":[
			{"_id":"64b000000000000000000001","name":"Oak Chair","category":"Furniture","price":120,"quantity":3,"rating":4.1},
			{"_id":"64b000000000000000000002","name":"Desk Lamp","category":"Lighting","price":40,"discountedPrice":30,"quantity":5,"rating":4.8}
		],"total":25,"limit":10}`)
	})
	mux.HandleFunc("GET /products/transaction/{trxid}", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"paymentInfo":{"transactionID":"`+r.PathValue("trxid")+`","userName":"ada","email":"ada@shop.io","productId":"64b000000000000000000002","productName":"Desk Lamp","quantity":2,"unitPrice":30,"totalAmount":60,"status":"success","date":"2026-10-17T09:00:00Z"},
			"productInfo":{"_id":"64b000000000000000000002","name":"Desk Lamp","category":"Lighting","images":["https://img.example/lamp.jpg"],"price":40,"quantity":5}}`)
	})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.created++
		b.mu.Unlock()
		write(w, `{"acknowledged":true,"insertedId":"`+orderID+`"}`)
	})
	mux.HandleFunc("GET /orders/singleOrder/{id}", func(w http.ResponseWriter, r *http.Request) {
		write(w, `{"_id":"`+r.PathValue("id")+`","productName":"Desk Lamp","email":"ada@shop.io","quantity":1,"totalAmount":30,"status":"success","date":"`+time.Now().UTC().Format(time.RFC3339)+`"}`)
	})
	mux.HandleFunc("DELETE /orders/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted++
		b.mu.Unlock()
		write(w, `{"acknowledged":true,"deletedCount":1}`)
	})
	mux.HandleFunc("POST /chatbot", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"response": "You asked: " + req.Question})
	})
	return mux
}

type app struct {
	server  *httptest.Server
	backend *fakeBackend
	client  *http.Client
}

func newApp(t *testing.T) *app {
	t.Helper()
	fb := &fakeBackend{}
	backendSrv := httptest.NewServer(fb.handler())
	t.Cleanup(backendSrv.Close)

	cfg := config.Config{
		BackendURL:        backendSrv.URL,
		SessionKey:        config.DeriveKey([]byte("test-secret"), "session"),
		SessionBlockKey:   config.DeriveKey([]byte("test-secret"), "session-block"),
		CSRFKey:           config.DeriveKey([]byte("test-secret"), "csrf"),
		RoleClaimKey:      config.DeriveKey([]byte("test-secret"), "role-claim"),
		APITimeout:        2 * time.Second,
		RoleCacheTTL:      time.Minute,
		RoleClaimTTL:      time.Minute,
		GuardWait:         time.Second,
		LogoutOnForbidden: true,
		ImageMaxWidth:     800,
		CORSOrigins:       []string{"*"},
	}
	manager := session.NewManager(session.NewCookieStore(session.CookieOptions{
		HashKey:  cfg.SessionKey,
		BlockKey: cfg.SessionBlockKey,
	}), &fakeProvider{tokens: map[string]session.User{}}, zerolog.Nop())

	r, err := SetupRouter(cfg, Deps{
		Manager: manager,
		Backend: apiclient.NewBackend(backendSrv.URL, cfg.APITimeout, zerolog.Nop()),
		Ledger:  services.NewMemoryLedger(),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &app{
		server:  srv,
		backend: fb,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (a *app) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

var tokenField = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func (a *app) csrfToken(t *testing.T, page string) string {
	t.Helper()
	_, body := a.get(t, page)
	m := tokenField.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no CSRF field on %s", page)
	}
	return m[1]
}

func (a *app) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (a *app) login(t *testing.T, email string) {
	t.Helper()
	resp, _ := a.post(t, "/login", url.Values{
		"email":              {email},
		"password":           {"secret"},
		"gorilla.csrf.Token": {a.csrfToken(t, "/login")},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	resp, body := a.get(t, "/health")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
}

func TestProductListingFiltersPage(t *testing.T) {
	a := newApp(t)
	resp, body := a.get(t, "/products?category=Lighting")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Desk Lamp") || strings.Contains(body, "Oak Chair</a>") {
		t.Error("category filter not applied")
	}
	if !strings.Contains(body, "$30.00") || !strings.Contains(body, "-25%") {
		t.Error("discounted price not rendered")
	}
	if got := strings.Count(body, `class="pager"`); got != 1 {
		t.Fatalf("pager count = %d", got)
	}
	if !strings.Contains(body, ">3</a>") || strings.Contains(body, ">4</a>") {
		t.Error("expected exactly three page buttons for total 25 / limit 10")
	}
}

func TestGuardsRedirectAnonymousVisitors(t *testing.T) {
	a := newApp(t)
	tests := []struct {
		path     string
		location string
	}{
		{"/dashboard", "/login?from=%2Fdashboard"},
		{"/checkout/64b000000000000000000002?quantity=1", "/login?from=%2Fcheckout%2F64b000000000000000000002%3Fquantity%3D1"},
		{"/dashboard/allUsers", "/forbidden"},
		{"/dashboard/myOrders", "/forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := a.get(t, tt.path)
			if resp.StatusCode != http.StatusSeeOther {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if loc := resp.Header.Get("Location"); loc != tt.location {
				t.Errorf("Location = %q, want %q", loc, tt.location)
			}
			if strings.Contains(body, "<table") {
				t.Error("protected content rendered")
			}
		})
	}
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	a := newApp(t)
	resp, _ := a.post(t, "/login", url.Values{"email": {"ada@shop.io"}, "password": {"secret"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRoleGatedPages(t *testing.T) {
	a := newApp(t)
	a.login(t, "ada@shop.io")

	resp, _ := a.get(t, "/dashboard/allUsers")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/forbidden" {
		t.Errorf("user on admin page = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	admin := newApp(t)
	admin.login(t, "admin@shop.io")
	resp, body := admin.get(t, "/dashboard/allUsers")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "ada@shop.io") {
		t.Errorf("admin users page = %d", resp.StatusCode)
	}
	resp, _ = admin.get(t, "/dashboard/myOrders")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/forbidden" {
		t.Errorf("admin on user page = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestPaymentSuccessCreatesOrderOnce(t *testing.T) {
	a := newApp(t)
	a.login(t, "ada@shop.io")

	resp, body := a.get(t, "/payment-success?trxid=TRX-1")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Your order has been placed") {
		t.Fatalf("first visit = %d", resp.StatusCode)
	}
	resp, body = a.get(t, "/payment-success?trxid=TRX-1")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "already recorded") {
		t.Fatalf("second visit = %d", resp.StatusCode)
	}
	if created, _ := a.backend.counts(); created != 1 {
		t.Errorf("orders created = %d, want 1", created)
	}

	resp, _ = a.get(t, "/payment-success")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing trxid status = %d", resp.StatusCode)
	}
}

func TestDeleteOrderAsksForConfirmation(t *testing.T) {
	a := newApp(t)
	a.login(t, "ada@shop.io")
	path := "/dashboard/myOrders/" + orderID + "/delete"

	resp, body := a.post(t, path, url.Values{
		"page":               {"0"},
		"gorilla.csrf.Token": {a.csrfToken(t, "/dashboard/profile")},
	})
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `name="confirmed"`) {
		t.Fatalf("confirm step = %d", resp.StatusCode)
	}
	if _, deleted := a.backend.counts(); deleted != 0 {
		t.Fatal("order deleted before confirmation")
	}

	resp, _ = a.post(t, path, url.Values{
		"page":               {"0"},
		"confirmed":          {"yes"},
		"gorilla.csrf.Token": {a.csrfToken(t, "/dashboard/profile")},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard/myOrders" {
		t.Fatalf("delete = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if _, deleted := a.backend.counts(); deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestChatbotProxy(t *testing.T) {
	a := newApp(t)
	resp, err := a.client.Post(a.server.URL+"/api/chatbot", "application/json", strings.NewReader(`{"question":"Do you ship abroad?"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || out["response"] != "You asked: Do you ship abroad?" {
		t.Errorf("chatbot = %d %v", resp.StatusCode, out)
	}

	resp, err = a.client.Post(a.server.URL+"/api/chatbot", "application/json", strings.NewReader(`{"question":""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty question status = %d", resp.StatusCode)
	}
}
