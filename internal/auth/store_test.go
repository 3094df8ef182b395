package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/user"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// accountStore keeps accounts in memory and exposes the same signup/login
// code slots as user.Repository.
type accountStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*user.User
	codes    map[string]map[uuid.UUID]*verification.PendingCode
	deletes  int
	getByErr error
}

func newAccountStore() *accountStore {
	return &accountStore{
		users: make(map[uuid.UUID]*user.User),
		codes: map[string]map[uuid.UUID]*verification.PendingCode{
			"signup": {},
			"login":  {},
		},
	}
}

func (s *accountStore) Create(_ context.Context, nu user.NewUser) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(nu.Email)
	for _, u := range s.users {
		if u.Email == email {
			return nil, user.ErrDuplicateEmail
		}
		if strings.EqualFold(u.Username, nu.Username) {
			return nil, user.ErrDuplicateUsername
		}
	}

	now := time.Now()
	u := &user.User{
		ID:            uuid.New(),
		Email:         email,
		Username:      nu.Username,
		Name:          nu.Name,
		PasswordHash:  nu.PasswordHash,
		Role:          nu.Role,
		EmailVerified: nu.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.users[u.ID] = u

	cp := *u
	return &cp, nil
}

func (s *accountStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getByErr != nil {
		return nil, s.getByErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *accountStore) GetByIdentity(_ context.Context, identity string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.lookup(identity, true)
	if u == nil {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *accountStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(s.users, id)
	for _, slot := range s.codes {
		delete(slot, id)
	}
	s.deletes++
	return nil
}

func (s *accountStore) lookup(identity string, byUsername bool) *user.User {
	identity = strings.ToLower(strings.TrimSpace(identity))
	for _, u := range s.users {
		if u.Email == identity || (byUsername && strings.ToLower(u.Username) == identity) {
			return u
		}
	}
	return nil
}

func (s *accountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *accountStore) setRole(id uuid.UUID, role user.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].Role = role
}

func (s *accountStore) add(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *accountStore) signup() verification.Repository[user.Account] {
	return &accountSlot{store: s, slot: "signup"}
}

func (s *accountStore) login() verification.Repository[user.Account] {
	return &accountSlot{store: s, slot: "login", byUsername: true}
}

type accountSlot struct {
	store      *accountStore
	slot       string
	byUsername bool
}

func (a *accountSlot) FindByIdentity(_ context.Context, identity string) (*verification.Subject[user.Account], error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	u := a.store.lookup(identity, a.byUsername)
	if u == nil {
		return nil, verification.ErrNoRecord
	}
	return a.subject(u), nil
}

func (a *accountSlot) Create(context.Context, *verification.Subject[user.Account]) (*verification.Subject[user.Account], error) {
	return nil, verification.ErrNoRecord
}

func (a *accountSlot) Save(_ context.Context, subj *verification.Subject[user.Account]) (*verification.Subject[user.Account], error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	u, ok := a.store.users[subj.ID]
	if !ok {
		return nil, verification.ErrNoRecord
	}
	u.EmailVerified = subj.Verified
	if subj.Pending == nil {
		delete(a.store.codes[a.slot], u.ID)
	} else {
		p := *subj.Pending
		a.store.codes[a.slot][u.ID] = &p
	}
	return a.subject(u), nil
}

func (a *accountSlot) Delete(_ context.Context, id uuid.UUID) error {
	return verification.ErrNoRecord
}

func (a *accountSlot) subject(u *user.User) *verification.Subject[user.Account] {
	subj := &verification.Subject[user.Account]{
		ID:       u.ID,
		Identity: u.Email,
		Email:    u.Email,
		Name:     u.Name,
		Verified: u.EmailVerified,
	}
	if p, ok := a.store.codes[a.slot][u.ID]; ok {
		cp := *p
		subj.Pending = &cp
	}
	return subj
}

// plainPasswords keeps tests fast; argon2id has its own tests.
type plainPasswords struct {
	mu       sync.Mutex
	compared []string
}

func (*plainPasswords) Hash(password string) (string, error) { return "plain:" + password, nil }

func (p *plainPasswords) Compare(password, encodedHash string) bool {
	p.mu.Lock()
	p.compared = append(p.compared, encodedHash)
	p.mu.Unlock()
	return encodedHash == "plain:"+password
}

func (p *plainPasswords) Compared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.compared...)
}
