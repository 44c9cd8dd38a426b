package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/querycache/session"
)

type staticAuth string

func (a staticAuth) AuthorizationHeader() (string, error) {
	if a == "" {
		return "", errors.New("signed out")
	}
	return "Bearer " + string(a), nil
}

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]json.RawMessage
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestNewHTTPAPI_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:3030", "://bad"} {
		if _, err := NewHTTPAPI(HTTPConfig{BaseURL: u}); err == nil {
			t.Errorf("NewHTTPAPI(%q) error = nil", u)
		}
	}
}

func TestHTTPAPI_Reads(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/treatments":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Massage","durationInMinutes":60,"description":"relax"}]`))
		case "/staff":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Divya","treatmentNames":["facial","scrub"]}]`))
		case "/appointments/2022/06":
			_, _ = w.Write([]byte(`{"15":[{"id":2,"dateTime":"2022-06-15T10:00:00Z","treatmentName":"facial","userId":1}]}`))
		case "/user/1":
			_, _ = w.Write([]byte(`{"user":{"id":1,"email":"ada@example.com","name":"Ada"}}`))
		case "/user/1/appointments":
			_, _ = w.Write([]byte(`{"appointments":[{"id":2,"dateTime":"2022-06-15T10:00:00Z","treatmentName":"facial","userId":1}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	api, err := NewHTTPAPI(HTTPConfig{BaseURL: srv.URL + "/", Authorizer: staticAuth("tok")})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	treatments, err := api.Treatments(ctx)
	if err != nil || len(treatments) != 1 || treatments[0].DurationInMinutes != 60 {
		t.Errorf("Treatments() = (%+v, %v)", treatments, err)
	}
	staff, err := api.Staff(ctx)
	if err != nil || len(staff) != 1 || len(staff[0].TreatmentNames) != 2 {
		t.Errorf("Staff() = (%+v, %v)", staff, err)
	}
	month, err := api.Appointments(ctx, MonthYear{2022, time.June})
	if err != nil {
		t.Fatal(err)
	}
	if a, ok := month.Find(2); !ok || a.UserID != 1 || a.DateTime.Day() != 15 {
		t.Errorf("Appointments() = %+v", month)
	}
	user, err := api.User(ctx, 1)
	if err != nil || user.Name != "Ada" {
		t.Errorf("User() = (%+v, %v)", user, err)
	}
	appts, err := api.UserAppointments(ctx, 1)
	if err != nil || len(appts) != 1 {
		t.Errorf("UserAppointments() = (%+v, %v)", appts, err)
	}

	for _, c := range calls() {
		userPath := c.path == "/user/1" || c.path == "/user/1/appointments"
		if userPath && c.auth != "Bearer tok" {
			t.Errorf("%s sent Authorization %q", c.path, c.auth)
		}
		if !userPath && c.auth != "" {
			t.Errorf("%s sent Authorization %q", c.path, c.auth)
		}
	}
}

func TestHTTPAPI_Patches(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/1":
			_, _ = w.Write([]byte(`{"user":{"id":1,"email":"ada@example.com","name":"Grace"}}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	api, _ := NewHTTPAPI(HTTPConfig{BaseURL: srv.URL, Authorizer: staticAuth("tok")})
	ctx := context.Background()

	u, err := api.PatchUser(ctx, 1, []PatchOp{{Op: "replace", Path: "/name", Value: "Grace"}})
	if err != nil || u.Name != "Grace" {
		t.Fatalf("PatchUser() = (%+v, %v)", u, err)
	}
	if err := api.PatchAppointment(ctx, 4, []PatchOp{{Op: "add", Path: "/userId", Value: 1}}); err != nil {
		t.Fatal(err)
	}

	got := calls()
	if len(got) != 2 {
		t.Fatalf("calls = %d", len(got))
	}
	if got[0].method != http.MethodPatch || got[0].body["patch"] == nil {
		t.Errorf("user patch = %+v", got[0])
	}
	if got[1].path != "/appointment/4" || got[1].body["data"] == nil || got[1].auth != "" {
		t.Errorf("appointment patch = %+v", got[1])
	}
	var ops []PatchOp
	if err := json.Unmarshal(got[1].body["data"], &ops); err != nil || ops[0].Path != "/userId" {
		t.Errorf("ops = %+v (%v)", ops, err)
	}
}

func TestHTTPAPI_StatusError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"with message", http.StatusBadRequest, `{"message":"appointment already reserved"}`, "appointment already reserved"},
		{"without message", http.StatusInternalServerError, `oops`, "server responded 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			api, _ := NewHTTPAPI(HTTPConfig{BaseURL: srv.URL})

			err := api.PatchAppointment(context.Background(), 1, nil)
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.status {
				t.Fatalf("error = %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
			if !errors.Is(err, ErrUnexpectedStatus) {
				t.Error("StatusError does not match ErrUnexpectedStatus")
			}
		})
	}
}

func TestHTTPAPI_AuthorizerError(t *testing.T) {
	srv, calls := newTestServer(t, func(http.ResponseWriter, *http.Request) {})
	api, _ := NewHTTPAPI(HTTPConfig{BaseURL: srv.URL, Authorizer: staticAuth("")})

	if _, err := api.User(context.Background(), 1); err == nil {
		t.Fatal("User() error = nil")
	}
	if len(calls()) != 0 {
		t.Error("request sent without credential")
	}
}

func TestHTTPAPI_ExpiredIdentity(t *testing.T) {
	srv, calls := newTestServer(t, func(http.ResponseWriter, *http.Request) {})
	api, _ := NewHTTPAPI(HTTPConfig{BaseURL: srv.URL})

	expired := &session.Identity{UserID: 1, Principal: "ada", ExpiresAt: time.Now().Add(-time.Minute)}
	err := api.PatchAppointment(session.WithIdentity(context.Background(), expired), 5, []PatchOp{{Op: "remove", Path: "/userId"}})
	if !errors.Is(err, session.ErrCredentialExpired) {
		t.Fatalf("PatchAppointment() error = %v, want ErrCredentialExpired", err)
	}
	if Transient(err) {
		t.Error("expired credential counted as an outage")
	}
	if len(calls()) != 0 {
		t.Error("request sent with an expired identity")
	}

	valid := &session.Identity{UserID: 1, Principal: "ada", ExpiresAt: time.Now().Add(time.Hour)}
	if err := api.PatchAppointment(session.WithIdentity(context.Background(), valid), 5, []PatchOp{{Op: "remove", Path: "/userId"}}); err != nil {
		t.Fatalf("PatchAppointment() error = %v", err)
	}
	if len(calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(calls()))
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"conflict", &StatusError{Code: 409, Message: "appointment already reserved"}, false},
		{"not found", &StatusError{Code: 404}, false},
		{"server error", &StatusError{Code: 500}, true},
		{"unavailable", &StatusError{Code: 503}, true},
		{"transport", errors.New("connection refused"), true},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
