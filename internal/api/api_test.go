package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestLoginStoresTokenAndAuthorizesProfile(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode login: %v", err)
			}
			if body["username"] != "minji" || body["password"] != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"jwt-abc"}`))
		case "/api/profile":
			if got := r.Header.Get("Authorization"); got != "Bearer jwt-abc" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"missing token"}`))
				return
			}
			_, _ = w.Write([]byte(`{"username":"minji","name":"Kim Minji","age":34,"gender":"female","level":2}`))
		default:
			http.NotFound(w, r)
		}
	})

	if _, err := c.Profile(context.Background()); err == nil {
		t.Fatal("profile without token succeeded")
	}

	token, err := c.Login(context.Background(), "minji", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "jwt-abc" || c.Token() != "jwt-abc" {
		t.Fatalf("token=%q stored=%q", token, c.Token())
	}

	p, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Username != "minji" || p.Age != 34 || p.Gender != "female" || p.Fields["level"] != float64(2) {
		t.Fatalf("profile=%+v", p)
	}
}

func TestServerErrorMessage(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":"invalid credentials"}`, "invalid credentials"},
		{`{"message":"user not found"}`, "user not found"},
		{`not json`, "Unauthorized"},
	}
	for _, tc := range cases {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := c.Login(context.Background(), "minji", "wrong12")
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("err=%v, want *Error", err)
		}
		if apiErr.Status != http.StatusUnauthorized || apiErr.Message != tc.want {
			t.Fatalf("err=%+v, want message %q", apiErr, tc.want)
		}
		if c.Token() != "" {
			t.Fatal("token stored after failed login")
		}
	}
}

func TestLoginAccessTokenFallback(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"jwt-xyz"}`))
	})
	if token, err := c.Login(context.Background(), "minji", "secret1"); err != nil || token != "jwt-xyz" {
		t.Fatalf("token=%q err=%v", token, err)
	}

	c = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := c.Login(context.Background(), "minji", "secret1"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err=%v, want ErrNoToken", err)
	}
}

func TestSignup(t *testing.T) {
	var got SignupRequest
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signup" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"created"}`))
	})

	req := SignupRequest{Username: "  minji ", Password: "secret1", Name: "Kim Minji", Age: 34, Gender: "female"}
	if err := c.Signup(context.Background(), req); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if got.Username != "minji" || got.Age != 34 {
		t.Fatalf("server got %+v", got)
	}
}

func TestSignupValidation(t *testing.T) {
	valid := SignupRequest{Username: "minji", Password: "secret1", Name: "Kim", Age: 30, Gender: "male"}
	bad := []func(*SignupRequest){
		func(r *SignupRequest) { r.Username = "abc" },
		func(r *SignupRequest) { r.Password = "12345" },
		func(r *SignupRequest) { r.Name = " " },
		func(r *SignupRequest) { r.Age = 0 },
		func(r *SignupRequest) { r.Age = 121 },
		func(r *SignupRequest) { r.Gender = "" },
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	for i, mutate := range bad {
		r := valid
		mutate(&r)
		if err := r.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: err=%v, want ErrInvalidInput", i, err)
		}
	}
}
