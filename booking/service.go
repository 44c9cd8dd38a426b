package booking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/mutation"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/session"
)

// Appointment months are polled and never trusted without a refetch.
const (
	AppointmentsEvictAfter = 5 * time.Minute
	AppointmentsInterval   = time.Minute
)

// Notification messages.
const (
	MsgUserUpdated          = "user updated"
	MsgUserRestored         = "update failed restoring previous values"
	MsgAppointmentReserved  = "you have reserved the appointment"
	MsgAppointmentCancelled = "you have canceled the appointment"
)

// Service is the booking client.
type Service struct {
	api     API
	client  *query.Client
	coord   *mutation.Coordinator
	session *session.Session
	now     func() time.Time
	logger  observe.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now for appointment filtering.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l observe.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires api to the cache through client and coord.
func NewService(api API, client *query.Client, coord *mutation.Coordinator, sess *session.Session, opts ...ServiceOption) *Service {
	s := &Service{
		api:     api,
		client:  client,
		coord:   coord,
		session: sess,
		now:     time.Now,
		logger:  observe.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the query client the service reads through.
func (s *Service) Client() *query.Client {
	return s.client
}

func (s *Service) fetchTreatments(ctx context.Context, _ cache.Key) (any, error) {
	return s.api.Treatments(ctx)
}

func (s *Service) fetchStaff(ctx context.Context, _ cache.Key) (any, error) {
	return s.api.Staff(ctx)
}

func (s *Service) fetchAppointments(ctx context.Context, key cache.Key) (any, error) {
	m, err := monthYearFromKey(key)
	if err != nil {
		return nil, err
	}
	return s.api.Appointments(ctx, m)
}

func (s *Service) fetchUser(ctx context.Context, _ cache.Key) (any, error) {
	c, ok := s.session.Credential()
	if !ok {
		return nil, ErrNoUser
	}
	return s.api.User(ctx, c.UserID)
}

func (s *Service) fetchUserAppointments(ctx context.Context, _ cache.Key) (any, error) {
	c, ok := s.session.Credential()
	if !ok {
		return nil, ErrNoUser
	}
	return s.api.UserAppointments(ctx, c.UserID)
}

func appointmentOptions() query.Options {
	return query.Options{
		Entry: []cache.EntryOption{
			cache.WithStaleAfter(0),
			cache.WithEvictAfter(AppointmentsEvictAfter),
		},
		RefetchInterval: AppointmentsInterval,
		OnMount:         query.MountIfStale,
		OnFocus:         query.ToggleOn,
		OnReconnect:     query.ToggleOn,
	}
}

// PrefetchTreatments loads treatments before anyone watches them.
func (s *Service) PrefetchTreatments(ctx context.Context) error {
	return s.client.Prefetch(ctx, TreatmentsKey, s.fetchTreatments, query.Options{})
}

// PrefetchAppointments loads the appointments of month m.
func (s *Service) PrefetchAppointments(ctx context.Context, m MonthYear) error {
	opts := appointmentOptions()
	opts.RefetchInterval = 0
	return s.client.Prefetch(ctx, m.Key(), s.fetchAppointments, opts)
}

// Warm prefetches treatments, staff and the current month concurrently.
func (s *Service) Warm(ctx context.Context) error {
	month := MonthYearOf(s.now())
	opts := appointmentOptions()
	opts.RefetchInterval = 0
	return s.client.PrefetchAll(ctx,
		query.PrefetchRequest{Key: TreatmentsKey, Fetch: s.fetchTreatments},
		query.PrefetchRequest{Key: StaffKey, Fetch: s.fetchStaff},
		query.PrefetchRequest{Key: month.Key(), Fetch: s.fetchAppointments, Options: opts},
	)
}

// UpdateUser stores u as the current user. A user carrying a token also
// becomes the stored credential.
func (s *Service) UpdateUser(ctx context.Context, u User) error {
	// Written first so that observers enabled by the sign-in find fresh data.
	s.client.Store().Write(UserKey, u)
	if u.Token == "" {
		return nil
	}
	return s.session.SignIn(ctx, session.Credential{UserID: u.ID, Token: u.Token})
}

// ClearUser signs out, empties the user entry and drops the user's
// appointments.
func (s *Service) ClearUser(ctx context.Context) error {
	if err := s.session.SignOut(ctx); err != nil {
		return err
	}
	s.client.Store().Write(UserKey, nil)
	removed := s.client.Remove(UserAppointmentsKey)
	s.logger.Debug(ctx, "user cleared", observe.Field{Key: "removed", Value: len(removed)})
	return nil
}

// CurrentUser returns the cached user.
func (s *Service) CurrentUser() (User, bool) {
	v, ok := s.client.Store().Get(UserKey)
	if !ok {
		return User{}, false
	}
	return query.ViewAs[User](v)
}

// PatchUser sends the difference between the cached user and next. The
// cache shows next immediately and reverts with a warning if the server
// rejects it.
func (s *Service) PatchUser(ctx context.Context, next User) (User, error) {
	cur, ok := s.CurrentUser()
	if !ok {
		return User{}, ErrNoUser
	}
	ctx = s.withIdentity(ctx)

	res, err := mutation.Run(ctx, s.coord, mutation.Mutation[User]{
		Name: "patch-user",
		Do: func(ctx context.Context, next User) (any, error) {
			ops, err := DiffUser(cur, next)
			if err != nil {
				return nil, err
			}
			if len(ops) == 0 {
				return next, nil
			}
			return s.api.PatchUser(ctx, cur.ID, ops)
		},
		Speculate: func(_ mutation.Reader, next User) []mutation.Write {
			return []mutation.Write{{Key: UserKey, Data: next}}
		},
		Commit: func(_ context.Context, _ User, result any) {
			if u, ok := result.(User); ok {
				s.client.Store().Write(UserKey, u)
			}
		},
		Invalidate: []cache.Key{UserKey},
		Success:    mutation.Notification{Message: MsgUserUpdated, Severity: mutation.SeveritySuccess},
		Rollback:   mutation.Notification{Message: MsgUserRestored, Severity: mutation.SeverityWarning},
	}, next)
	if err != nil {
		return User{}, err
	}
	u, _ := res.Value.(User)
	return u, nil
}

// ReserveAppointment books appt for the signed-in user. The slot shows as
// taken immediately; all appointment months are refetched on success.
func (s *Service) ReserveAppointment(ctx context.Context, appt Appointment) error {
	id, err := s.session.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoUser, err)
	}
	ctx = session.WithIdentity(ctx, id)
	op := "add"
	if appt.Reserved() {
		op = "replace"
	}
	return s.setAppointmentUser(ctx, "reserve-appointment", appt, id.UserID,
		[]PatchOp{{Op: op, Path: "/userId", Value: id.UserID}},
		mutation.Notification{Message: MsgAppointmentReserved, Severity: mutation.SeveritySuccess})
}

// CancelAppointment frees appt.
func (s *Service) CancelAppointment(ctx context.Context, appt Appointment) error {
	return s.setAppointmentUser(s.withIdentity(ctx), "cancel-appointment", appt, 0,
		[]PatchOp{{Op: "remove", Path: "/userId"}},
		mutation.Notification{Message: MsgAppointmentCancelled, Severity: mutation.SeverityWarning})
}

func (s *Service) setAppointmentUser(ctx context.Context, name string, appt Appointment, userID int, ops []PatchOp, success mutation.Notification) error {
	key := MonthYearOf(appt.DateTime).Key()
	_, err := mutation.Run(ctx, s.coord, mutation.Mutation[Appointment]{
		Name: name,
		Do: func(ctx context.Context, appt Appointment) (any, error) {
			return nil, s.api.PatchAppointment(ctx, appt.ID, ops)
		},
		Speculate: func(r mutation.Reader, appt Appointment) []mutation.Write {
			v, ok := r.Get(key)
			if !ok {
				return nil
			}
			month, ok := query.ViewAs[AppointmentDateMap](v)
			if !ok {
				return nil
			}
			updated, found := withUser(month, appt.ID, userID)
			if !found {
				return nil
			}
			return []mutation.Write{{Key: key, Data: updated}}
		},
		Invalidate: []cache.Key{AppointmentsKey},
		Success:    success,
	}, appt)
	return err
}

// withIdentity attaches the signed-in identity, if any, to ctx so the API
// can check it before sending a request on the user's behalf.
func (s *Service) withIdentity(ctx context.Context) context.Context {
	id, err := s.session.Identity()
	if err != nil {
		return ctx
	}
	return session.WithIdentity(ctx, id)
}

func monthYearFromKey(key cache.Key) (MonthYear, error) {
	if len(key) != 3 || key.Family() != FamilyAppointments {
		return MonthYear{}, fmt.Errorf("%w: not an appointment month: %s", cache.ErrInvalidKey, key)
	}
	ys, _ := key[1].(string)
	ms, _ := key[2].(string)
	y, err := strconv.Atoi(ys)
	if err != nil {
		return MonthYear{}, fmt.Errorf("%w: year %q", cache.ErrInvalidKey, ys)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return MonthYear{}, fmt.Errorf("%w: month %q", cache.ErrInvalidKey, ms)
	}
	return MonthYear{Year: y, Month: time.Month(m)}, nil
}
