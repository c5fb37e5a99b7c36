package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL schema.  Occupancy changes
// are atomic under mu, like the transactional repository.
type memDB struct {
	mu       sync.Mutex
	shows    map[string]model.Show
	movies   map[string]model.Movie
	bookings map[string]model.Booking
	seats    map[string]map[string]model.ShowSeat // show id -> label -> row
	users    map[string]model.User
	now      time.Time
}

func newMemDB(now time.Time) *memDB {
	return &memDB{
		shows:    map[string]model.Show{},
		movies:   map[string]model.Movie{},
		bookings: map[string]model.Booking{},
		seats:    map[string]map[string]model.ShowSeat{},
		users:    map[string]model.User{},
		now:      now,
	}
}

func (db *memDB) addMovie(m model.Movie) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.movies[m.ID] = m
}

func (db *memDB) addShow(s model.Show) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.shows[s.ID] = s
}

func (db *memDB) addUser(u model.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

func (db *memDB) booking(id string) (model.Booking, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.bookings[id]
	return b, ok
}

func (db *memDB) bookingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.bookings)
}

type memBookings struct{ *memDB }

func (s memBookings) Create(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shows[b.ShowID]; !ok {
		return repository.ErrShowNotFound
	}
	held := s.seats[b.ShowID]
	var conflicts []string
	for _, l := range b.Seats {
		if _, ok := held[l]; ok {
			conflicts = append(conflicts, l)
		}
	}
	if len(conflicts) > 0 {
		return &repository.SeatsUnavailableError{Seats: conflicts}
	}
	if held == nil {
		held = map[string]model.ShowSeat{}
		s.seats[b.ShowID] = held
	}
	for _, l := range b.Seats {
		held[l] = model.ShowSeat{ShowID: b.ShowID, SeatLabel: l, BookingID: b.ID, UserID: b.UserID}
	}
	b.CreatedAt, b.UpdatedAt = s.now, s.now
	s.bookings[b.ID] = *b
	return nil
}

func (s memBookings) MarkPaid(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.IsPaid {
		return false, nil
	}
	b.IsPaid = true
	s.bookings[id] = b
	return true, nil
}

func (s memBookings) ReleaseUnpaid(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.IsPaid {
		return false, nil
	}
	for _, l := range b.Seats {
		delete(s.seats[b.ShowID], l)
	}
	delete(s.bookings, id)
	return true, nil
}

func (s memBookings) SetPaymentSession(ctx context.Context, id, sessionID, link string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.PaymentSessionID, b.PaymentLink, b.PaymentExpiresAt = &sessionID, &link, &expiresAt
	s.bookings[id] = b
	return nil
}

func (s memBookings) ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for id, b := range s.bookings {
		if !b.IsPaid && b.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s memBookings) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (s memBookings) detail(b model.Booking) model.BookingDetail {
	u, ok := s.users[b.UserID]
	if !ok {
		u = model.User{ID: b.UserID}
	}
	sh := s.shows[b.ShowID]
	return model.NewBookingDetail(b, u, sh, s.movies[sh.MovieID])
}

func (s memBookings) GetDetail(ctx context.Context, id string) (*model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	d := s.detail(b)
	return &d, nil
}

func (s memBookings) list(keep func(model.Booking) bool) []model.BookingDetail {
	out := []model.BookingDetail{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, s.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memBookings) ListDetailsByUser(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (s memBookings) ListDetails(ctx context.Context) ([]model.BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(model.Booking) bool { return true }), nil
}

func (s memBookings) PaidTotals(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n, sum int64
	for _, b := range s.bookings {
		if b.IsPaid {
			n++
			sum += b.AmountCents
		}
	}
	return n, sum, nil
}

type memShows struct{ *memDB }

func (s memShows) CreateSlots(ctx context.Context, shows []model.Show) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range shows {
		for _, e := range s.shows {
			if e.MovieID == n.MovieID && e.StartsAt.Equal(n.StartsAt) {
				return repository.ErrConflict
			}
		}
	}
	for _, n := range shows {
		n.CreatedAt = s.now
		s.shows[n.ID] = n
	}
	return nil
}

func (s memShows) GetByID(ctx context.Context, id string) (*model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &sh, nil
}

func (s memShows) filter(keep func(model.Show) bool) []model.Show {
	out := []model.Show{}
	for _, sh := range s.shows {
		if keep(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (s memShows) ListUpcoming(ctx context.Context, now time.Time) ([]model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(sh model.Show) bool { return !sh.StartsAt.Before(now) }), nil
}

func (s memShows) ListUpcomingByMovie(ctx context.Context, movieID string, now time.Time) ([]model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(sh model.Show) bool { return sh.MovieID == movieID && !sh.StartsAt.Before(now) }), nil
}

func (s memShows) ListStartingBetween(ctx context.Context, from, to time.Time) ([]model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(sh model.Show) bool { return !sh.StartsAt.Before(from) && !sh.StartsAt.After(to) }), nil
}

func (s memShows) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	shows, _ := s.ListUpcoming(ctx, now)
	return int64(len(shows)), nil
}

type memSeats struct{ *memDB }

func (s memSeats) Occupancy(ctx context.Context, showID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for l, row := range s.seats[showID] {
		out[l] = row.UserID
	}
	return out, nil
}

func (s memSeats) HolderIDs(ctx context.Context, showID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, row := range s.seats[showID] {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			out = append(out, row.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memMovies struct{ *memDB }

func (s memMovies) Insert(ctx context.Context, m model.Movie) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[m.ID]; ok {
		return false, nil
	}
	m.CreatedAt = s.now
	s.movies[m.ID] = m
	return true, nil
}

func (s memMovies) GetByID(ctx context.Context, id string) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &m, nil
}

func (s memMovies) ListByIDs(ctx context.Context, ids []string) (map[string]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]model.Movie{}
	for _, id := range ids {
		if m, ok := s.movies[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type memUsers struct{ *memDB }

func (s memUsers) Upsert(ctx context.Context, u model.User) error {
	s.addUser(u)
	return nil
}

func (s memUsers) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s memUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s memUsers) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s memUsers) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memUsers) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// fakeScheduler records tasks instead of publishing them.
type fakeScheduler struct {
	mu          sync.Mutex
	scheduled   []scheduledTask
	dispatched  []scheduledTask
	scheduleErr error
	dispatchErr error
}

type scheduledTask struct {
	Kind      queue.Kind
	Payload   any
	NotBefore time.Time
}

func (f *fakeScheduler) Schedule(ctx context.Context, kind queue.Kind, payload any, notBefore time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled = append(f.scheduled, scheduledTask{Kind: kind, Payload: payload, NotBefore: notBefore})
	return nil
}

func (f *fakeScheduler) Dispatch(ctx context.Context, kind queue.Kind, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	f.dispatched = append(f.dispatched, scheduledTask{Kind: kind, Payload: payload})
	return nil
}

func (f *fakeScheduler) dispatchedOf(kind queue.Kind) []scheduledTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduledTask
	for _, t := range f.dispatched {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}
