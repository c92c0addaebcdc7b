package service

import (
	"context"
	"sync"
	"time"

	"identity-service/internal/email"
	"identity-service/internal/identity/federation"
	"identity-service/internal/otp"
	otpdomain "identity-service/internal/otp/domain"
	"identity-service/internal/policy/engine"
	"identity-service/internal/security"
	telemetrydomain "identity-service/internal/telemetry/domain"
	userdomain "identity-service/internal/user/domain"
	userrepo "identity-service/internal/user/repository"
	"identity-service/internal/verification"
	verificationdomain "identity-service/internal/verification/domain"
)

// memUserRepo is an in-memory user store with the postgres repository's semantics.
type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	creates int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) find(match func(*userdomain.User) bool) *userdomain.User {
	for _, u := range r.byID {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.ID == id }), nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.Email == email }), nil
}

func (r *memUserRepo) GetByUserName(_ context.Context, userName string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.UserName == userName }), nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(func(x *userdomain.User) bool { return x.Email == u.Email }) != nil {
		return userrepo.ErrDuplicateEmail
	}
	if r.find(func(x *userdomain.User) bool { return x.UserName == u.UserName }) != nil {
		return userrepo.ErrDuplicateUserName
	}
	c := *u
	r.byID[u.ID] = &c
	r.creates++
	return nil
}

func (r *memUserRepo) update(match func(*userdomain.User) bool, apply func(*userdomain.User)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			apply(u)
			return true
		}
	}
	return false
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, hash string) (bool, error) {
	return r.update(func(u *userdomain.User) bool { return u.ID == id },
		func(u *userdomain.User) { u.PasswordHash = hash }), nil
}

func (r *memUserRepo) UpdatePasswordByEmail(_ context.Context, email, hash string) (bool, error) {
	return r.update(func(u *userdomain.User) bool { return u.Email == email },
		func(u *userdomain.User) { u.PasswordHash = hash }), nil
}

func (r *memUserRepo) MarkEmailVerified(_ context.Context, email string) (bool, error) {
	return r.update(func(u *userdomain.User) bool { return u.Email == email },
		func(u *userdomain.User) { u.EmailVerified = true }), nil
}

func (r *memUserRepo) SetPhone(_ context.Context, id, phone string) (bool, error) {
	r.mu.Lock()
	taken := r.find(func(u *userdomain.User) bool { return u.Phone == phone && u.ID != id }) != nil
	r.mu.Unlock()
	if taken {
		return false, userrepo.ErrDuplicatePhone
	}
	return r.update(func(u *userdomain.User) bool { return u.ID == id }, func(u *userdomain.User) {
		u.Phone = phone
		u.PhoneVerified = false
		u.LoginVerified = false
	}), nil
}

func (r *memUserRepo) MarkPhoneVerified(_ context.Context, id string) (bool, error) {
	return r.update(func(u *userdomain.User) bool { return u.ID == id && !u.PhoneVerified },
		func(u *userdomain.User) { u.PhoneVerified = true }), nil
}

func (r *memUserRepo) SetLoginVerified(_ context.Context, id string, verified bool) (bool, error) {
	return r.update(func(u *userdomain.User) bool { return u.ID == id },
		func(u *userdomain.User) { u.LoginVerified = verified }), nil
}

type memTokenRepo struct {
	mu   sync.Mutex
	rows map[string]verificationdomain.Token
}

func (r *memTokenRepo) Get(_ context.Context, email string) (*verificationdomain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[email]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memTokenRepo) Upsert(_ context.Context, t *verificationdomain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.Email] = *t
	return nil
}

func (r *memTokenRepo) MarkUsed(_ context.Context, email, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[email]
	if !ok || t.Used || t.Token != token {
		return false, nil
	}
	t.Used = true
	r.rows[email] = t
	return true, nil
}

type memChallengeRepo struct {
	mu   sync.Mutex
	rows map[string]otpdomain.Challenge
}

func (r *memChallengeRepo) Get(_ context.Context, phone string) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[phone]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memChallengeRepo) Upsert(_ context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.Phone] = *c
	return nil
}

type sentMail struct {
	recipient, token, name string
	kind                   email.Kind
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, recipient, token string, kind email.Kind, name string) (email.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return email.Result{Status: false, Message: "Email could not be sent"}, m.err
	}
	m.sent = append(m.sent, sentMail{recipient: recipient, token: token, kind: kind, name: name})
	return email.Result{Status: true, Message: kind.SentMessage()}, nil
}

func (m *fakeMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type fakeSMS struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (f *fakeSMS) SendOTP(_ context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[phone] = code
	return f.err
}

func (f *fakeSMS) code(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[phone]
}

type fakeLinkedIn struct {
	email string
	err   error
	got   federation.ExchangeParams
}

func (f *fakeLinkedIn) PrimaryEmail(_ context.Context, p federation.ExchangeParams) (string, error) {
	f.got = p
	return f.email, f.err
}

type fixedRole struct {
	role userdomain.Role
	err  error
	got  []engine.RoleInput
}

func (f *fixedRole) AssignRole(_ context.Context, in engine.RoleInput) (userdomain.Role, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return userdomain.RoleUser, f.err
	}
	return f.role, nil
}

type chanEmitter chan *telemetrydomain.AuthEvent

func (c chanEmitter) Emit(_ context.Context, ev *telemetrydomain.AuthEvent) error {
	c <- ev
	return nil
}

// clock is a settable time source shared by the service and both ledgers.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc    *AuthService
	users  *memUserRepo
	tokens *memTokenRepo
	mailer *fakeMailer
	sms    *fakeSMS
	clock  *clock
}

func newHarness(mod func(*Deps)) *harness {
	h := &harness{
		users:  newMemUserRepo(),
		tokens: &memTokenRepo{rows: make(map[string]verificationdomain.Token)},
		mailer: &fakeMailer{},
		sms:    &fakeSMS{},
		clock:  &clock{t: time.Now().UTC().Truncate(time.Second)},
	}
	d := Deps{
		Users:         h.users,
		Hasher:        security.NewHasher(4),
		Tokens:        security.NewTestTokenProvider(),
		Verifications: verification.NewLedger(h.tokens, 10*time.Minute, h.clock.now),
		OTPs:          otp.NewLedger(&memChallengeRepo{rows: make(map[string]otpdomain.Challenge)}, 2*time.Minute, h.clock.now),
		Mailer:        h.mailer,
		SMS:           h.sms,
	}
	if mod != nil {
		mod(&d)
	}
	h.svc = NewAuthService(d)
	h.svc.now = h.clock.now
	h.svc.resolver.now = h.clock.now
	return h
}
