package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/session"
)

// API is the remote booking authority.
type API interface {
	Treatments(ctx context.Context) ([]Treatment, error)
	Staff(ctx context.Context) ([]Staff, error)
	Appointments(ctx context.Context, m MonthYear) (AppointmentDateMap, error)
	User(ctx context.Context, id int) (User, error)
	UserAppointments(ctx context.Context, id int) ([]Appointment, error)
	PatchUser(ctx context.Context, id int, ops []PatchOp) (User, error)
	PatchAppointment(ctx context.Context, id int, ops []PatchOp) error
}

// Authorizer returns the Authorization header value for user requests.
// session.Session satisfies it.
type Authorizer interface {
	AuthorizationHeader() (string, error)
}

// HTTPConfig configures HTTPAPI.
type HTTPConfig struct {
	// BaseURL is the server root, e.g. "http://localhost:3030".
	BaseURL string

	// Timeout bounds each request.
	// Default: 10s
	Timeout time.Duration

	// HTTPClient is an optional custom client.
	HTTPClient *http.Client

	// Authorizer signs user requests. Optional.
	Authorizer Authorizer
}

// HTTPAPI talks to the booking server over JSON/HTTP.
type HTTPAPI struct {
	base       *url.URL
	httpClient *http.Client
	auth       Authorizer
}

// NewHTTPAPI creates an HTTP client for the booking server.
func NewHTTPAPI(config HTTPConfig) (*HTTPAPI, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("booking: invalid base url %q", config.BaseURL)
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &HTTPAPI{base: base, httpClient: httpClient, auth: config.Authorizer}, nil
}

// Treatments lists all treatments.
func (a *HTTPAPI) Treatments(ctx context.Context) ([]Treatment, error) {
	var out []Treatment
	err := a.do(ctx, http.MethodGet, "/treatments", nil, false, &out)
	return out, err
}

// Staff lists all staff.
func (a *HTTPAPI) Staff(ctx context.Context) ([]Staff, error) {
	var out []Staff
	err := a.do(ctx, http.MethodGet, "/staff", nil, false, &out)
	return out, err
}

// Appointments returns one month of appointments.
func (a *HTTPAPI) Appointments(ctx context.Context, m MonthYear) (AppointmentDateMap, error) {
	out := AppointmentDateMap{}
	err := a.do(ctx, http.MethodGet, "/appointments/"+m.YearString()+"/"+m.MonthString(), nil, false, &out)
	return out, err
}

type userEnvelope struct {
	User User `json:"user"`
}

// User returns the user with id.
func (a *HTTPAPI) User(ctx context.Context, id int) (User, error) {
	var out userEnvelope
	err := a.do(ctx, http.MethodGet, "/user/"+strconv.Itoa(id), nil, true, &out)
	return out.User, err
}

// UserAppointments lists the appointments held by the user with id.
func (a *HTTPAPI) UserAppointments(ctx context.Context, id int) ([]Appointment, error) {
	var out struct {
		Appointments []Appointment `json:"appointments"`
	}
	err := a.do(ctx, http.MethodGet, "/user/"+strconv.Itoa(id)+"/appointments", nil, true, &out)
	return out.Appointments, err
}

// PatchUser applies ops to the user with id and returns the stored user.
func (a *HTTPAPI) PatchUser(ctx context.Context, id int, ops []PatchOp) (User, error) {
	var out userEnvelope
	body := map[string]any{"patch": ops}
	err := a.do(ctx, http.MethodPatch, "/user/"+strconv.Itoa(id), body, true, &out)
	return out.User, err
}

// PatchAppointment applies ops to the appointment with id.
func (a *HTTPAPI) PatchAppointment(ctx context.Context, id int, ops []PatchOp) error {
	body := map[string]any{"data": ops}
	return a.do(ctx, http.MethodPatch, "/appointment/"+strconv.Itoa(id), body, false, nil)
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, in any, authorize bool, out any) error {
	if id := session.IdentityFromContext(ctx); id != nil && id.IsExpired(time.Now()) {
		return fmt.Errorf("booking: %s %s as %q: %w", method, path, session.PrincipalFromContext(ctx), session.ErrCredentialExpired)
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("booking: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := *a.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorize && a.auth != nil {
		header, err := a.auth.AuthorizationHeader()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", header)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("booking: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("booking: decode %s: %w", path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Code: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		se.Message = payload.Message
	}
	return se
}
