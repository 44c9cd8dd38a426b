package booking

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/query"
)

// AllStaff is the staff filter that shows everyone.
const AllStaff = "all"

// Watcher is a typed, projected read of one observed key.
// Release must be called when the watcher is no longer needed.
type Watcher[T any] struct {
	obs  *query.Observer
	sel  query.Selector[T]
	proj func() query.Projection[T]
}

func newWatcher[T any](obs *query.Observer, proj func() query.Projection[T]) *Watcher[T] {
	if proj == nil {
		proj = func() query.Projection[T] { return query.Projection[T]{} }
	}
	return &Watcher[T]{obs: obs, proj: proj}
}

// Value returns the projected data. It reports false while no data of
// type T is cached.
func (w *Watcher[T]) Value() (T, bool) {
	return w.sel.Select(w.obs.Current(), w.proj())
}

// View returns the raw entry, including fetch status and error.
func (w *Watcher[T]) View() cache.EntryView {
	return w.obs.Current()
}

// Observer returns the underlying observer.
func (w *Watcher[T]) Observer() *query.Observer {
	return w.obs
}

// Release stops watching.
func (w *Watcher[T]) Release() {
	w.obs.Release()
}

// WatchTreatments observes the treatment list.
func (s *Service) WatchTreatments(listener cache.Listener) *Watcher[[]Treatment] {
	obs := s.client.Observe(TreatmentsKey, s.fetchTreatments, query.Options{}, listener)
	return newWatcher[[]Treatment](obs, nil)
}

// StaffWatcher observes the staff list through a treatment filter.
type StaffWatcher struct {
	*Watcher[[]Staff]

	mu     sync.Mutex
	filter string
}

// WatchStaff observes the staff list. The initial filter is AllStaff.
func (s *Service) WatchStaff(listener cache.Listener) *StaffWatcher {
	w := &StaffWatcher{filter: AllStaff}
	obs := s.client.Observe(StaffKey, s.fetchStaff, query.Options{}, listener)
	w.Watcher = newWatcher(obs, w.projection)
	return w
}

// Filter returns the current treatment filter.
func (w *StaffWatcher) Filter() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filter
}

// SetFilter shows only staff offering treatment, or everyone for AllStaff.
func (w *StaffWatcher) SetFilter(treatment string) {
	w.mu.Lock()
	w.filter = treatment
	w.mu.Unlock()
}

func (w *StaffWatcher) projection() query.Projection[[]Staff] {
	f := w.Filter()
	if f == AllStaff {
		return query.Projection[[]Staff]{ID: AllStaff}
	}
	return query.Projection[[]Staff]{
		ID: "treatment:" + f,
		Fn: func(staff []Staff) []Staff { return StaffByTreatment(staff, f) },
	}
}

// AppointmentsWatcher observes one month of appointments at a time.
type AppointmentsWatcher struct {
	*Watcher[AppointmentDateMap]
	svc *Service

	mu      sync.Mutex
	month   MonthYear
	showAll bool
}

// WatchAppointments observes the current month and prefetches the next.
// Unless ShowAll is set, Value returns only the slots the signed-in user
// can act on.
func (s *Service) WatchAppointments(ctx context.Context, listener cache.Listener) (*AppointmentsWatcher, error) {
	w := &AppointmentsWatcher{svc: s, month: MonthYearOf(s.now())}
	obs := s.client.Observe(w.month.Key(), s.fetchAppointments, appointmentOptions(), listener)
	w.Watcher = newWatcher(obs, w.projection)
	return w, s.PrefetchAppointments(ctx, w.month.Add(1))
}

// MonthYear returns the watched month.
func (w *AppointmentsWatcher) MonthYear() MonthYear {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.month
}

// UpdateMonthYear moves the watched month by increment months and
// prefetches the month after it.
func (w *AppointmentsWatcher) UpdateMonthYear(ctx context.Context, increment int) error {
	w.mu.Lock()
	w.month = w.month.Add(increment)
	month := w.month
	w.mu.Unlock()

	w.obs.Rekey(month.Key(), nil)
	return w.svc.PrefetchAppointments(ctx, month.Add(1))
}

// ShowAll reports whether reserved and past slots are shown.
func (w *AppointmentsWatcher) ShowAll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.showAll
}

// SetShowAll toggles showing every slot.
func (w *AppointmentsWatcher) SetShowAll(all bool) {
	w.mu.Lock()
	w.showAll = all
	w.mu.Unlock()
}

func (w *AppointmentsWatcher) projection() query.Projection[AppointmentDateMap] {
	if w.ShowAll() {
		return query.Projection[AppointmentDateMap]{ID: "all"}
	}
	userID := 0
	if c, ok := w.svc.session.Credential(); ok {
		userID = c.UserID
	}
	now := w.svc.now()
	return query.Projection[AppointmentDateMap]{
		ID: fmt.Sprintf("available:%d:%s", userID, now.Format("2006-01-02")),
		Fn: func(m AppointmentDateMap) AppointmentDateMap { return AvailableAppointments(m, userID, now) },
	}
}

// UserWatcher observes the signed-in user. It only fetches while a
// credential is present.
type UserWatcher struct {
	*Watcher[User]
	unsubscribe func()
}

// WatchUser observes the current user.
func (s *Service) WatchUser(listener cache.Listener) *UserWatcher {
	obs, unsubscribe := s.observeSignedIn(UserKey, s.fetchUser, listener)
	return &UserWatcher{Watcher: newWatcher[User](obs, nil), unsubscribe: unsubscribe}
}

// Release stops watching and following the session.
func (w *UserWatcher) Release() {
	w.unsubscribe()
	w.Watcher.Release()
}

// UserAppointmentsWatcher observes the appointments of the signed-in user.
type UserAppointmentsWatcher struct {
	*Watcher[[]Appointment]
	unsubscribe func()
}

// WatchUserAppointments observes the signed-in user's appointments.
func (s *Service) WatchUserAppointments(listener cache.Listener) *UserAppointmentsWatcher {
	obs, unsubscribe := s.observeSignedIn(UserAppointmentsKey, s.fetchUserAppointments, listener)
	return &UserAppointmentsWatcher{Watcher: newWatcher[[]Appointment](obs, nil), unsubscribe: unsubscribe}
}

// Release stops watching and following the session.
func (w *UserAppointmentsWatcher) Release() {
	w.unsubscribe()
	w.Watcher.Release()
}

// observeSignedIn observes key only while the session holds a credential.
func (s *Service) observeSignedIn(key cache.Key, fn query.FetchFunc, listener cache.Listener) (*query.Observer, func()) {
	obs := s.client.Observe(key, fn, query.Options{Disabled: !s.session.Present()}, listener)
	unsubscribe := s.session.OnChange(obs.SetEnabled)
	return obs, unsubscribe
}
