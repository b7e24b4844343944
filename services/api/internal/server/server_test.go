package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bibliotech/internal/ratelimit"
	"bibliotech/pkg/domain"
	"bibliotech/pkg/store"
	"bibliotech/services/api/internal/app"
)

func newTestServer(t *testing.T, limiter *ratelimit.FixedWindowLimiter) *httptest.Server {
	t.Helper()
	application, err := app.New(app.Config{Store: store.NewMemoryStore()})
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: application, AuthLimiter: limiter}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, base, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/auth/register", map[string]string{
		"email":    email,
		"password": "segreto",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", email, resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("register %s: missing id in %v", email, body)
	}
	return id
}

func TestHealthReportsStorage(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["database"] != "in-memory" {
		t.Fatalf("unexpected health payload %v", body)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, nil)
	userID := registerUser(t, srv.URL, "Mario@Rossi.IT")

	// Login is case-insensitive on the email and never echoes the password.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "mario@rossi.it",
		"password": "segreto",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d body %v", resp.StatusCode, body)
	}
	if body["id"] != userID || body["username"] != "mario" {
		t.Fatalf("unexpected login payload %v", body)
	}
	if _, leaked := body["password"]; leaked {
		t.Fatalf("password leaked in login payload %v", body)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, nil)
	registerUser(t, srv.URL, "mario@rossi.it")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "mario@rossi.it",
		"password": "sbagliata",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d body %v", resp.StatusCode, body)
	}
	if body["code"] != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("unexpected error code %v", body["code"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t, nil)
	registerUser(t, srv.URL, "mario@rossi.it")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"email":    "MARIO@rossi.it",
		"password": "altra",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d body %v", resp.StatusCode, body)
	}
	if body["code"] != "AUTH_EMAIL_EXISTS" {
		t.Fatalf("unexpected error code %v", body["code"])
	}
}

func TestBookRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	ownerID := registerUser(t, srv.URL, "mario@rossi.it")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/books", domain.Book{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Status:      domain.StatusWishlist,
		OwnerUserID: ownerID,
	})
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("create status %d body %v", resp.StatusCode, body)
	}
	bookID, _ := body["id"].(string)
	if bookID == "" {
		t.Fatalf("create did not assign an id: %v", body)
	}

	listResp, err := http.Get(srv.URL + "/api/books")
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	defer listResp.Body.Close()
	var books []domain.Book
	if err := json.NewDecoder(listResp.Body).Decode(&books); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected one book, got %+v", books)
	}
	got := books[0]
	if got.ID != bookID || got.Title != "Dune" || got.Status != domain.StatusWishlist ||
		got.OwnerUserID != ownerID || got.CreatedAt == 0 {
		t.Fatalf("unexpected stored book %+v", got)
	}
}

func TestUpdatePreservesIdentityFields(t *testing.T) {
	srv := newTestServer(t, nil)
	ownerID := registerUser(t, srv.URL, "mario@rossi.it")

	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/books", domain.Book{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Status:      domain.StatusReading,
		OwnerUserID: ownerID,
	})
	bookID := created["id"].(string)

	// The payload claims a different owner and creation time; both must
	// survive from the stored row.
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/books/"+bookID, domain.Book{
		ID:          "forged-id",
		Title:       "Dune Messiah",
		Author:      "Frank Herbert",
		Status:      domain.StatusCompleted,
		OwnerUserID: "someone-else",
		CreatedAt:   1,
	})
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("update status %d body %v", resp.StatusCode, body)
	}

	listResp, err := http.Get(srv.URL + "/api/books")
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	defer listResp.Body.Close()
	var books []domain.Book
	_ = json.NewDecoder(listResp.Body).Decode(&books)
	if len(books) != 1 {
		t.Fatalf("expected one book, got %+v", books)
	}
	got := books[0]
	if got.ID != bookID || got.OwnerUserID != ownerID || got.CreatedAt == 1 {
		t.Fatalf("identity fields rewritten: %+v", got)
	}
	if got.Title != "Dune Messiah" || got.Status != domain.StatusCompleted {
		t.Fatalf("mutable fields not applied: %+v", got)
	}
}

func TestPartialUpdateKeepsOmittedFields(t *testing.T) {
	srv := newTestServer(t, nil)
	ownerID := registerUser(t, srv.URL, "mario@rossi.it")

	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/books", domain.Book{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Description: "Sabbia ovunque",
		Status:      domain.StatusReading,
		OwnerUserID: ownerID,
		CoverImage:  "https://covers.example/dune.jpg",
	})
	bookID := created["id"].(string)

	// Only the title travels; everything else keeps its stored value.
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/books/"+bookID, map[string]string{
		"title": "Dune (Edizione Italiana)",
	})
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("partial update status %d body %v", resp.StatusCode, body)
	}

	listResp, err := http.Get(srv.URL + "/api/books")
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	defer listResp.Body.Close()
	var books []domain.Book
	_ = json.NewDecoder(listResp.Body).Decode(&books)
	if len(books) != 1 {
		t.Fatalf("expected one book, got %+v", books)
	}
	got := books[0]
	if got.Title != "Dune (Edizione Italiana)" {
		t.Fatalf("title not applied: %+v", got)
	}
	if got.Author != "Frank Herbert" || got.Description != "Sabbia ovunque" ||
		got.Status != domain.StatusReading || got.CoverImage != "https://covers.example/dune.jpg" {
		t.Fatalf("omitted fields blanked: %+v", got)
	}
}

func TestUpdateUnknownBook(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/books/ghost", domain.Book{
		Title:  "Ghost",
		Author: "Nobody",
		Status: domain.StatusReading,
	})
	if resp.StatusCode != http.StatusNotFound || body["code"] != "BOOK_NOT_FOUND" {
		t.Fatalf("unknown update status %d body %v", resp.StatusCode, body)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	srv := newTestServer(t, nil)
	ownerID := registerUser(t, srv.URL, "mario@rossi.it")
	_, created := doJSON(t, http.MethodPost, srv.URL+"/api/books", domain.Book{
		Title:       "Dune",
		Author:      "Frank Herbert",
		Status:      domain.StatusReading,
		OwnerUserID: ownerID,
	})
	bookID := created["id"].(string)

	for i := 0; i < 2; i++ {
		resp, body := doJSON(t, http.MethodDelete, srv.URL+"/api/books/"+bookID, nil)
		if resp.StatusCode != http.StatusOK || body["success"] != true {
			t.Fatalf("delete #%d status %d body %v", i+1, resp.StatusCode, body)
		}
	}
}

func TestCreateBookValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	ownerID := registerUser(t, srv.URL, "mario@rossi.it")

	cases := []struct {
		name string
		book domain.Book
		code string
	}{
		{"missing title", domain.Book{Author: "A", Status: domain.StatusReading, OwnerUserID: ownerID}, "BOOK_MISSING_FIELDS"},
		{"missing author", domain.Book{Title: "T", Status: domain.StatusReading, OwnerUserID: ownerID}, "BOOK_MISSING_FIELDS"},
		{"bad status", domain.Book{Title: "T", Author: "A", Status: "paused", OwnerUserID: ownerID}, "BOOK_INVALID_STATUS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/books", tc.book)
			if resp.StatusCode != http.StatusBadRequest || body["code"] != tc.code {
				t.Fatalf("status %d body %v", resp.StatusCode, body)
			}
		})
	}
}

func TestAuthRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewMemoryFixedWindowLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("init limiter: %v", err)
	}
	srv := newTestServer(t, limiter)

	creds := map[string]string{"email": "mario@rossi.it", "password": "x"}
	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", creds)
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("attempt %d limited too early", i+1)
		}
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", creds)
	if resp.StatusCode != http.StatusTooManyRequests || body["code"] != "AUTH_RATE_LIMITED" {
		t.Fatalf("third attempt status %d body %v", resp.StatusCode, body)
	}
}
