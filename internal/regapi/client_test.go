package regapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/names/{name}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NameStatus{Name: req.PathValue("name"), Available: true})
	})
	mux.HandleFunc("GET /api/users/{name}/credentials", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if req.PathValue("name") != "Jane Doe" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(Error{Message: "user not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(UserCredentials{
			Username:    "Jane Doe",
			Credentials: []CredentialInfo{{ID: "abc", Transports: []string{"usb"}, CreatedAt: created}},
		})
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c := NewClient(ClientOptions{Endpoint: srv.URL + "/"}, srv.Client())

	st, err := c.NameStatus(ctx, "Jane Doe")
	if err != nil {
		t.Fatalf("name status: %v", err)
	}
	if st.Name != "Jane Doe" || !st.Available {
		t.Fatalf("bad status: %+v", st)
	}

	creds, err := c.UserCredentials(ctx, "Jane Doe")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if len(creds.Credentials) != 1 || !creds.Credentials[0].CreatedAt.Equal(created) {
		t.Fatalf("bad credentials: %+v", creds)
	}

	_, err = c.UserCredentials(ctx, "nobody")
	if !MatchesStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 error, got %v", err)
	}

	raw := &client{o: ClientOptions{Endpoint: srv.URL}, client: srv.Client()}
	_, err = doClientRequest[NameStatus](ctx, raw, "/broken")
	if !MatchesStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 error, got %v", err)
	}
}
