package libclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bibliotech/pkg/domain"
)

func TestCheckHealthStates(t *testing.T) {
	cases := []struct {
		name     string
		database string
		want     Health
	}{
		{"postgres ready", "connected", Health{Reachable: true, StorageReady: true}},
		{"memory ready", "in-memory", Health{Reachable: true, StorageReady: true}},
		{"storage down", "unreachable", Health{Reachable: true, StorageReady: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": "ok", "database": tc.database})
			}))
			defer srv.Close()

			got := NewClient(srv.URL).CheckHealth(context.Background())
			if got != tc.want {
				t.Fatalf("health = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCheckHealthTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, WithHealthTimeout(50*time.Millisecond))
	start := time.Now()
	got := client.CheckHealth(context.Background())
	if got.Reachable || got.StorageReady {
		t.Fatalf("hanging backend must report offline, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("probe did not respect its timeout, took %v", elapsed)
	}
}

func TestCheckHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if got := NewClient(srv.URL).CheckHealth(context.Background()); got.Reachable {
		t.Fatalf("dead server must report offline, got %+v", got)
	}
}

func TestLoginErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Incorrect email address or password",
			"code":  "AUTH_INVALID_CREDENTIALS",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Login(context.Background(), "a@b.it", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("rejected login should map to ErrInvalidCredentials, got %v", err)
	}

	srv.Close()
	_, err = client.Login(context.Background(), "a@b.it", "pw")
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("transport failure should map to ErrBackendUnreachable, got %v", err)
	}
}

func TestLoginReturnsUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != "mario@rossi.it" {
			t.Errorf("unexpected login email %q", req["email"])
		}
		json.NewEncoder(w).Encode(domain.User{ID: "u1", Email: "mario@rossi.it", Username: "mario"})
	}))
	defer srv.Close()

	user, err := NewClient(srv.URL).Login(context.Background(), "mario@rossi.it", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != "u1" || user.Username != "mario" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "email already registered",
			"code":  "AUTH_EMAIL_EXISTS",
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Register(context.Background(), domain.User{Email: "taken@b.it", Password: "pw"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email should map to ErrEmailTaken, got %v", err)
	}
}

func TestListBooksDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	books := NewClient(srv.URL).ListBooks(context.Background())
	if books == nil || len(books) != 0 {
		t.Fatalf("unreachable backend should yield an empty slice, got %#v", books)
	}
}

func TestListBooksDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]domain.Book{
			{ID: "b1", Title: "Il Nome della Rosa", Author: "Umberto Eco", Status: domain.StatusCompleted},
		})
	}))
	defer srv.Close()

	books := NewClient(srv.URL).ListBooks(context.Background())
	if len(books) != 1 || books[0].Author != "Umberto Eco" {
		t.Fatalf("unexpected books %+v", books)
	}
}

func TestMutationsReportOutcome(t *testing.T) {
	var deletes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletes++
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	book := domain.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert", Status: domain.StatusReading}
	if !client.CreateBook(context.Background(), book) {
		t.Fatalf("create should succeed")
	}
	if !client.UpdateBook(context.Background(), book) {
		t.Fatalf("update should succeed")
	}
	if !client.DeleteBook(context.Background(), "b1") || !client.DeleteBook(context.Background(), "b1") {
		t.Fatalf("repeated delete should succeed")
	}
	if deletes != 2 {
		t.Fatalf("expected two delete calls, saw %d", deletes)
	}

	srv.Close()
	if client.CreateBook(context.Background(), book) {
		t.Fatalf("create against a dead server should report failure")
	}
}
