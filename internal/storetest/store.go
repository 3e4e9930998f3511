// Package storetest provides an in-memory implementation of the repository
// registry and transaction manager for service tests. Transactions are
// serialized and roll back by restoring a snapshot.
package storetest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"penpal/internal/types"
)

// Operation names accepted by FailOn.
const (
	OpTransitCreate       = "transits.create"
	OpTransitFindDue      = "transits.find_due"
	OpTransitMark         = "transits.mark_delivered"
	OpLetterCreate        = "letters.create"
	OpLetterCreateDeliver = "letters.create_delivery"
	OpLetterUpdate        = "letters.update_status"
	OpLetterFind          = "letters.find"
	OpFriendRequestMark   = "friend_requests.mark_delivered"
	OpProfilesGet         = "profiles.get"
)

// Store is a mutex-guarded in-memory store.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	transits       map[string]types.TransitRecord
	letters        map[string]types.Letter
	friendRequests map[string]types.FriendRequest
	profiles       map[string]types.UserProfile

	failures map[string]error
	calls    map[string]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		transits:       make(map[string]types.TransitRecord),
		letters:        make(map[string]types.Letter),
		friendRequests: make(map[string]types.FriendRequest),
		profiles:       make(map[string]types.UserProfile),
		failures:       make(map[string]error),
		calls:          make(map[string]int),
	}
}

// FailOn makes op fail with err for key. An empty key matches every call.
func (s *Store) FailOn(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+":"+key] = err
}

// Calls returns how many times op succeeded in changing state.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) fail(op, key string) error {
	if err, ok := s.failures[op+":"+key]; ok {
		return err
	}
	return s.failures[op+":"]
}

// --- Seeding and inspection ---

// PutProfile stores a user profile.
func (s *Store) PutProfile(p types.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// PutLetter stores l as-is.
func (s *Store) PutLetter(l types.Letter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters[l.ID] = l
}

// PutTransit stores r as-is.
func (s *Store) PutTransit(r types.TransitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transits[r.ID] = r
}

// PutFriendRequest stores fr as-is.
func (s *Store) PutFriendRequest(fr types.FriendRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendRequests[fr.ID] = fr
}

// Transit returns the stored record.
func (s *Store) Transit(id string) (types.TransitRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.transits[id]
	return r, ok
}

// Letter returns the stored letter.
func (s *Store) Letter(id string) (types.Letter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.letters[id]
	return l, ok
}

// FriendRequest returns the stored friend request.
func (s *Store) FriendRequest(id string) (types.FriendRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fr, ok := s.friendRequests[id]
	return fr, ok
}

// AllLetters returns every stored letter ordered by ID.
func (s *Store) AllLetters() []types.Letter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.letters))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- TransactionManager / RepositoryRegistry ---

// RunInTx serializes fn against other transactions and restores the
// pre-transaction state when fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.RepositoryRegistry) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapTransits := maps.Clone(s.transits)
	snapLetters := maps.Clone(s.letters)
	snapFRs := maps.Clone(s.friendRequests)
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.transits = snapTransits
		s.letters = snapLetters
		s.friendRequests = snapFRs
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Transits() types.TransitRepository             { return (*transitRepo)(s) }
func (s *Store) Letters() types.LetterRepository               { return (*letterRepo)(s) }
func (s *Store) FriendRequests() types.FriendRequestRepository { return (*friendRequestRepo)(s) }
func (s *Store) Profiles() types.ProfileRepository             { return (*profileRepo)(s) }

// --- Transits ---

type transitRepo Store

func (r *transitRepo) Create(_ context.Context, rec *types.TransitRecord) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpTransitCreate, rec.ID); err != nil {
		return err
	}
	if _, ok := s.transits[rec.ID]; ok {
		return types.NewAppError(types.ErrCodeInternalDB, "duplicate transit record", nil)
	}
	c := *rec
	c.IsDelivered = false
	c.DeliveredAt = nil
	s.transits[c.ID] = c
	s.calls[OpTransitCreate]++
	return nil
}

func (r *transitRepo) GetByID(_ context.Context, id string) (*types.TransitRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.transits[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundTransit, "transit record not found", nil)
	}
	return &rec, nil
}

func (r *transitRepo) FindDue(_ context.Context, now time.Time, limit int) ([]types.TransitRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpTransitFindDue, ""); err != nil {
		return nil, err
	}
	out := s.selectTransits(func(rec types.TransitRecord) bool {
		return !rec.IsDelivered && !rec.DeliveryDate.After(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *transitRepo) FindPendingForUser(_ context.Context, recipientID string) ([]types.TransitRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectTransits(func(rec types.TransitRecord) bool {
		return !rec.IsDelivered && rec.RecipientID == recipientID
	}), nil
}

func (r *transitRepo) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpTransitMark, id); err != nil {
		return false, err
	}
	rec, ok := s.transits[id]
	if !ok {
		return false, types.NewAppError(types.ErrCodeNotFoundTransit, "transit record not found", nil)
	}
	if rec.IsDelivered || deliveredAt.Before(rec.DeliveryDate) {
		return false, nil
	}
	at := deliveredAt
	rec.IsDelivered = true
	rec.DeliveredAt = &at
	s.transits[id] = rec
	s.calls[OpTransitMark]++
	return true, nil
}

func (r *transitRepo) Stats(_ context.Context, userID string) (*types.TransitStats, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var st types.TransitStats
	for _, rec := range s.transits {
		if rec.SenderID == userID {
			st.TotalSent++
		}
		if rec.RecipientID == userID {
			if rec.IsDelivered {
				st.TotalDelivered++
			} else {
				st.InTransitCount++
			}
		}
	}
	return &st, nil
}

func (s *Store) selectTransits(keep func(types.TransitRecord) bool) []types.TransitRecord {
	var out []types.TransitRecord
	for _, rec := range s.transits {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeliveryDate.Equal(out[j].DeliveryDate) {
			return out[i].DeliveryDate.Before(out[j].DeliveryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- Letters ---

type letterRepo Store

func (r *letterRepo) Create(_ context.Context, l *types.Letter) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpLetterCreate, l.ID); err != nil {
		return err
	}
	if _, ok := s.letters[l.ID]; ok {
		return types.NewAppError(types.ErrCodeInternalDB, "duplicate letter", nil)
	}
	s.letters[l.ID] = *l
	s.calls[OpLetterCreate]++
	return nil
}

func (r *letterRepo) CreateDelivery(_ context.Context, l *types.Letter) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.RecipientID == nil || l.OriginalLetterID == nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "delivery copy needs recipient and original", nil)
	}
	if err := s.fail(OpLetterCreateDeliver, *l.RecipientID); err != nil {
		return false, err
	}
	for _, existing := range s.letters {
		if existing.Kind == types.LetterKindDelivery &&
			existing.RecipientID != nil && *existing.RecipientID == *l.RecipientID &&
			existing.OriginalLetterID != nil && *existing.OriginalLetterID == *l.OriginalLetterID {
			return false, nil
		}
	}
	s.letters[l.ID] = *l
	s.calls[OpLetterCreateDeliver]++
	return true, nil
}

func (r *letterRepo) UpdateStatus(_ context.Context, id string, update types.LetterStatusUpdate) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpLetterUpdate, id); err != nil {
		return false, err
	}
	l, ok := s.letters[id]
	if !ok {
		return false, types.NewAppError(types.ErrCodeNotFoundLetter, "letter not found", nil)
	}
	if len(update.From) > 0 && !slices.Contains(update.From, l.Status) {
		return false, nil
	}
	at := update.At
	l.Status = update.Status
	switch update.Status {
	case types.LetterStatusDelivered:
		l.DeliveredAt = &at
	case types.LetterStatusArchived:
		l.ArchivedAt = &at
	}
	s.letters[id] = l
	s.calls[OpLetterUpdate]++
	return true, nil
}

func (r *letterRepo) Find(_ context.Context, f types.LetterFilter) ([]types.Letter, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpLetterFind, f.SenderID); err != nil {
		return nil, err
	}
	out := s.filterLetters(f)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && uint64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *letterRepo) DistinctSenders(_ context.Context, f types.LetterFilter) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, l := range s.filterLetters(f) {
		seen[l.SenderID] = struct{}{}
	}
	out := slices.Sorted(maps.Keys(seen))
	if f.Limit > 0 && uint64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) filterLetters(f types.LetterFilter) []types.Letter {
	var out []types.Letter
	for _, l := range s.letters {
		switch {
		case len(f.IDs) > 0 && !slices.Contains(f.IDs, l.ID),
			slices.Contains(f.ExcludeIDs, l.ID),
			len(f.Statuses) > 0 && !slices.Contains(f.Statuses, l.Status),
			f.Kind != "" && l.Kind != f.Kind,
			f.SenderID != "" && l.SenderID != f.SenderID,
			f.ExcludeSenderID != "" && l.SenderID == f.ExcludeSenderID,
			f.RecipientID != "" && (l.RecipientID == nil || *l.RecipientID != f.RecipientID),
			!f.CreatedAfter.IsZero() && l.CreatedAt.Before(f.CreatedAfter),
			!f.DeliveredBefore.IsZero() && (l.DeliveredAt == nil || !l.DeliveredAt.Before(f.DeliveredBefore)):
			continue
		}
		out = append(out, l)
	}
	return out
}

// --- Friend requests ---

type friendRequestRepo Store

func (r *friendRequestRepo) Create(_ context.Context, fr *types.FriendRequest) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.friendRequests[fr.ID]; ok {
		return types.NewAppError(types.ErrCodeInternalDB, "duplicate friend request", nil)
	}
	s.friendRequests[fr.ID] = *fr
	return nil
}

func (r *friendRequestRepo) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpFriendRequestMark, id); err != nil {
		return err
	}
	fr, ok := s.friendRequests[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundFriendRequest, "friend request not found", nil)
	}
	if fr.IsDelivered {
		return nil
	}
	at := deliveredAt
	fr.IsDelivered = true
	fr.DeliveredAt = &at
	s.friendRequests[id] = fr
	s.calls[OpFriendRequestMark]++
	return nil
}

// --- Profiles ---

type profileRepo Store

func (r *profileRepo) GetProfile(_ context.Context, userID string) (*types.UserProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpProfilesGet, userID); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, fmt.Sprintf("user %s not found", userID), nil)
	}
	return &p, nil
}

func (r *profileRepo) GetProfiles(_ context.Context, userIDs []string) (map[string]types.UserProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.UserProfile, len(userIDs))
	for _, id := range userIDs {
		if err := s.fail(OpProfilesGet, id); err != nil {
			return nil, err
		}
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
