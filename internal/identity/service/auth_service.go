package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"identity-service/internal/apperror"
	"identity-service/internal/devotp"
	"identity-service/internal/email"
	identitydomain "identity-service/internal/identity/domain"
	"identity-service/internal/identity/federation"
	"identity-service/internal/otp/sms"
	"identity-service/internal/policy/engine"
	"identity-service/internal/security"
	"identity-service/internal/telemetry"
	telemetrydomain "identity-service/internal/telemetry/domain"
	userdomain "identity-service/internal/user/domain"
	userrepo "identity-service/internal/user/repository"
)

// Sentinel errors for the auth service; the HTTP layer maps their kinds to status codes.
var (
	ErrUserNotFound         = apperror.New(apperror.KindNotFound, "user not found")
	ErrNoUserFound          = apperror.New(apperror.KindNotFound, "No user found")
	ErrInvalidCredentials   = apperror.New(apperror.KindInvalidCredentials, "invalid email/password")
	ErrEmailExists          = apperror.New(apperror.KindConflict, "Email already exists")
	ErrUserNameExists       = apperror.New(apperror.KindConflict, "Username already exist")
	ErrVerificationFailed   = apperror.New(apperror.KindConflict, "Email verification failed")
	ErrPasswordMismatch     = apperror.New(apperror.KindConflict, "New password and confirm password does not match")
	ErrInvalidOldPassword   = apperror.New(apperror.KindInvalidCredentials, "Invalid old password")
	ErrPasswordChangeFailed = apperror.New(apperror.KindConflict, "Password change failed")
	ErrPhoneMismatch        = apperror.New(apperror.KindConflict, "Invalid phone number")
	ErrInvalidOTP           = apperror.New(apperror.KindInvalidCredentials, "Invalid OTP")
	ErrOTPExpired           = apperror.New(apperror.KindConflict, "OTP is Expired")
	ErrPhoneUpdateFailed    = apperror.New(apperror.KindConflict, "Error while adding to database")
	ErrPhoneTaken           = apperror.New(apperror.KindConflict, "This phone number is already in use")
	ErrPhoneRequired        = apperror.New(apperror.KindInvalidInput, "Phone number is required")
	ErrNoPhone              = apperror.New(apperror.KindInvalidInput, "Add a phone number first")
	ErrEmailRequired        = apperror.New(apperror.KindInvalidInput, "Email is required")
	ErrInvalidEmail         = apperror.New(apperror.KindInvalidInput, "Invalid email format")
	ErrUserNameRequired     = apperror.New(apperror.KindInvalidInput, "Username is required")
	ErrPasswordRequired     = apperror.New(apperror.KindInvalidInput, "Password is required")
	ErrOriginRequired       = apperror.New(apperror.KindInvalidInput, "loginType is required")
	ErrInvalidEmailKind     = apperror.New(apperror.KindInvalidInput, "Invalid email type")
)

// Caller-facing success messages.
const (
	MsgLoggedIn        = "Login successful"
	MsgRegistered      = "User registered successfully"
	MsgAlreadyVerified = "This email is already verified"
	MsgEmailVerified   = "Email verified successfully"
	MsgPasswordUpdated = "Password updated successfully"
	MsgOTPSent         = "Otp Sent Successfully"
	MsgOTPVerified     = "OTP verified successfully"
	MsgLoggedOut       = "Logout successfully"
)

var simpleEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepo is the user repository needed by the auth service.
type UserRepo interface {
	AccountFinder
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (bool, error)
	MarkEmailVerified(ctx context.Context, email string) (bool, error)
	SetPhone(ctx context.Context, id, phone string) (bool, error)
	MarkPhoneVerified(ctx context.Context, id string) (bool, error)
	SetLoginVerified(ctx context.Context, id string, verified bool) (bool, error)
}

// VerificationLedger issues and consumes email link tokens.
type VerificationLedger interface {
	IssueOrRefresh(ctx context.Context, email string) (string, error)
	Consume(ctx context.Context, email, supplied string) error
}

// OTPLedger issues and checks phone codes.
type OTPLedger interface {
	Issue(ctx context.Context, phone string) (string, time.Time, error)
	Verify(ctx context.Context, phone, code string) (bool, error)
	IsExpired(ctx context.Context, phone string) (bool, error)
}

// LinkedInClient resolves an authorization code to the member's email.
type LinkedInClient interface {
	PrimaryEmail(ctx context.Context, p federation.ExchangeParams) (string, error)
}

// Deps are the collaborators of AuthService. Mailer, SMS, DevOTP, LinkedIn, Roles, Events and
// Logger are optional.
type Deps struct {
	Users         UserRepo
	Hasher        *security.Hasher
	Tokens        *security.TokenProvider
	Verifications VerificationLedger
	OTPs          OTPLedger
	Mailer        email.Dispatcher
	SMS           sms.Sender
	// DevOTP is set only in dev OTP mode; the plain code is then kept there and echoed back.
	DevOTP   devotp.Store
	LinkedIn LinkedInClient
	Roles    engine.RoleAssigner
	Events   telemetry.EventEmitter
	Logger   *zap.Logger
}

// AuthResult is an account (password stripped) with a freshly issued bearer token.
type AuthResult struct {
	User      *userdomain.User
	Token     string
	ExpiresAt time.Time
}

// OTPResult reports an issued code. Code is set only in dev OTP mode.
type OTPResult struct {
	Message   string
	Code      string
	ExpiresAt time.Time
}

// AuthService orchestrates password and federated login, email links, password changes and
// phone verification.
type AuthService struct {
	users         UserRepo
	resolver      *Resolver
	hasher        *security.Hasher
	tokens        *security.TokenProvider
	verifications VerificationLedger
	otps          OTPLedger
	mailer        email.Dispatcher
	sms           sms.Sender
	devOTP        devotp.Store
	linkedIn      LinkedInClient
	events        telemetry.EventEmitter
	log           *zap.Logger
	now           func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps) *AuthService {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:         d.Users,
		resolver:      NewResolver(d.Users, d.Roles, log),
		hasher:        d.Hasher,
		tokens:        d.Tokens,
		verifications: d.Verifications,
		otps:          d.OTPs,
		mailer:        d.Mailer,
		sms:           d.SMS,
		devOTP:        d.DevOTP,
		linkedIn:      d.LinkedIn,
		events:        d.Events,
		log:           log,
		now:           time.Now,
	}
}

// Resolver returns the identity resolver used by the service.
func (s *AuthService) Resolver() *Resolver {
	return s.resolver
}

// Register creates a local account and sends the email verification link. The returned account
// has its password stripped. A failed link send does not fail registration.
func (s *AuthService) Register(ctx context.Context, userName, emailAddr, password string) (u *userdomain.User, err error) {
	defer func() { s.emit(telemetrydomain.EventRegister, userID(u), identitydomain.OriginLocal, err) }()

	userName = strings.TrimSpace(userName)
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if err := validateEmail(emailAddr); err != nil {
		return nil, err
	}
	if userName == "" {
		return nil, ErrUserNameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}
	existing, err = s.users.GetByUserName(ctx, userName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserNameExists
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u = &userdomain.User{
		ID:           uuid.New().String(),
		UserName:     userName,
		Email:        emailAddr,
		PasswordHash: hashed,
		LoginType:    identitydomain.OriginLocal,
		Role:         s.resolver.assignRole(ctx, identitydomain.OriginLocal, emailAddr),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidInput, "Invalid user", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrDuplicateEmail):
			return nil, ErrEmailExists
		case errors.Is(err, userrepo.ErrDuplicateUserName):
			return nil, ErrUserNameExists
		}
		return nil, err
	}
	if _, err := s.sendLink(ctx, u, email.KindEmailVerification); err != nil {
		s.log.Warn("register: verification link not issued", zap.String("user_id", u.ID), zap.Error(err))
	}
	return u.Public(), nil
}

// Login authenticates identifier (email or user name) with password and issues a token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (res *AuthResult, err error) {
	defer func() { s.emit(telemetrydomain.EventLogin, resultUserID(res), identitydomain.OriginLocal, err) }()

	u, err := s.resolver.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// LoginFederated signs in with an email the provider has already vouched for, creating the
// account on first use. accessToken is accepted for API compatibility and not checked.
func (s *AuthService) LoginFederated(ctx context.Context, emailAddr, accessToken, origin string) (res *AuthResult, err error) {
	origin = strings.TrimSpace(origin)
	defer func() { s.emit(telemetrydomain.EventLoginFederated, resultUserID(res), origin, err) }()

	if origin == "" {
		return nil, ErrOriginRequired
	}
	if strings.TrimSpace(emailAddr) == "" {
		return nil, ErrEmailRequired
	}
	u, _, err := s.resolver.FindOrCreateFederated(ctx, emailAddr, origin)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// LoginLinkedIn exchanges a LinkedIn authorization code for the member email and signs in
// under the linkedin origin.
func (s *AuthService) LoginLinkedIn(ctx context.Context, p federation.ExchangeParams) (*AuthResult, error) {
	if s.linkedIn == nil {
		return nil, federation.ErrFederationProvider
	}
	emailAddr, err := s.linkedIn.PrimaryEmail(ctx, p)
	if err != nil {
		s.log.Warn("linkedin exchange failed", zap.Error(err))
		s.emit(telemetrydomain.EventLoginFederated, "", identitydomain.OriginLinkedIn, err)
		return nil, err
	}
	return s.LoginFederated(ctx, emailAddr, "", identitydomain.OriginLinkedIn)
}

// SendVerificationEmail issues a fresh link token for the account matching identifier and emails
// it. For KindEmailVerification an already verified account gets MsgAlreadyVerified and no mail.
// Returns the caller-facing message.
func (s *AuthService) SendVerificationEmail(ctx context.Context, identifier string, kind email.Kind) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidEmailKind
	}
	u, err := s.resolver.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNoUserFound
	}
	if u.EmailVerified && kind != email.KindResetPassword {
		return MsgAlreadyVerified, nil
	}
	return s.sendLink(ctx, u, kind)
}

// sendLink refreshes the ledger token for u and hands it to the mailer. Delivery failures are
// logged and reported through the message only.
func (s *AuthService) sendLink(ctx context.Context, u *userdomain.User, kind email.Kind) (string, error) {
	token, err := s.verifications.IssueOrRefresh(ctx, u.Email)
	if err != nil {
		s.emit(telemetrydomain.EventEmailLinkSent, u.ID, "", err)
		return "", err
	}
	if s.mailer == nil {
		s.emit(telemetrydomain.EventEmailLinkSent, u.ID, "", nil)
		return kind.SentMessage(), nil
	}
	res, err := s.mailer.Send(ctx, u.Email, token, kind, u.UserName)
	if err != nil {
		s.log.Warn("email link delivery failed", zap.String("user_id", u.ID), zap.String("kind", string(kind)), zap.Error(err))
		s.emit(telemetrydomain.EventEmailLinkSent, u.ID, "", err)
		return res.Message, nil
	}
	s.emit(telemetrydomain.EventEmailLinkSent, u.ID, "", nil)
	return res.Message, nil
}

// VerifyEmail consumes the link token for emailAddr, marks the address verified and issues a
// token for the account.
func (s *AuthService) VerifyEmail(ctx context.Context, emailAddr, token string) (res *AuthResult, err error) {
	defer func() { s.emit(telemetrydomain.EventEmailVerified, resultUserID(res), "", err) }()

	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return nil, ErrEmailRequired
	}
	if err := s.verifications.Consume(ctx, emailAddr, token); err != nil {
		return nil, err
	}
	ok, err := s.users.MarkEmailVerified(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVerificationFailed
	}
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrVerificationFailed
	}
	return s.issue(u)
}

// ResetPasswordViaLink consumes the reset token for emailAddr and stores newPassword.
func (s *AuthService) ResetPasswordViaLink(ctx context.Context, emailAddr, token, newPassword string) (err error) {
	defer func() { s.emit(telemetrydomain.EventPasswordReset, "", "", err) }()

	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" {
		return ErrEmailRequired
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if err := s.verifications.Consume(ctx, emailAddr, token); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	ok, err := s.users.UpdatePasswordByEmail(ctx, emailAddr, hashed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordChangeFailed
	}
	return nil
}

// ChangePassword replaces the password of u after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, u *userdomain.User, oldPassword, newPassword, confirmPassword string) (err error) {
	defer func() { s.emit(telemetrydomain.EventPasswordChanged, userID(u), "", err) }()

	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if !s.hasher.Verify(oldPassword, u.PasswordHash) {
		return ErrInvalidOldPassword
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	ok, err := s.users.UpdatePassword(ctx, u.ID, hashed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordChangeFailed
	}
	return nil
}

// Logout clears the login_verified flag. Issued bearer tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, id string) (err error) {
	defer func() { s.emit(telemetrydomain.EventLogout, id, "", err) }()

	_, err = s.users.SetLoginVerified(ctx, id, false)
	return err
}

// AddPhoneAndRequestOtp stores phone on the account (clearing phone and login verification) and
// issues a code for it.
func (s *AuthService) AddPhoneAndRequestOtp(ctx context.Context, id, phone string) (*OTPResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	ok, err := s.users.SetPhone(ctx, id, phone)
	if err != nil {
		if errors.Is(err, userrepo.ErrDuplicatePhone) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}
	if !ok {
		return nil, ErrPhoneUpdateFailed
	}
	return s.issueOTP(ctx, id, phone)
}

// RequestOtp issues a new code for the account's current phone.
func (s *AuthService) RequestOtp(ctx context.Context, u *userdomain.User) (*OTPResult, error) {
	if u.Phone == "" {
		return nil, ErrNoPhone
	}
	return s.issueOTP(ctx, u.ID, u.Phone)
}

func (s *AuthService) issueOTP(ctx context.Context, id, phone string) (res *OTPResult, err error) {
	defer func() { s.emit(telemetrydomain.EventOTPIssued, id, "", err) }()

	code, expiresAt, err := s.otps.Issue(ctx, phone)
	if err != nil {
		return nil, err
	}
	if s.sms != nil {
		if err := s.sms.SendOTP(ctx, phone, code); err != nil {
			s.log.Warn("otp sms delivery failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	res = &OTPResult{Message: MsgOTPSent, ExpiresAt: expiresAt}
	if s.devOTP != nil {
		s.devOTP.Put(ctx, phone, code, expiresAt)
		res.Code = code
		res.Message = MsgOTPSent + " " + code
	}
	return res, nil
}

// VerifyOtp checks code for phone against the ledger on behalf of u. Checks run in order: the
// phone must be the account's, the code must match, and it must not be expired. On success
// phone_verified and login_verified are set and the reloaded account is returned.
func (s *AuthService) VerifyOtp(ctx context.Context, u *userdomain.User, phone, code string) (out *userdomain.User, err error) {
	defer func() { s.emit(telemetrydomain.EventOTPVerified, userID(u), "", err) }()

	phone = strings.TrimSpace(phone)
	ok, err := s.otps.Verify(ctx, phone, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	expired, err := s.otps.IsExpired(ctx, phone)
	if err != nil {
		return nil, err
	}
	switch {
	case u.Phone == "" || u.Phone != phone:
		return nil, ErrPhoneMismatch
	case !ok:
		return nil, ErrInvalidOTP
	case expired:
		return nil, ErrOTPExpired
	}
	if !u.PhoneVerified {
		if _, err := s.users.MarkPhoneVerified(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	if _, err := s.users.SetLoginVerified(ctx, u.ID, true); err != nil {
		return nil, err
	}
	out, err = s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrUserNotFound
	}
	return out.Public(), nil
}

// Profile returns the account with the given id, password stripped.
func (s *AuthService) Profile(ctx context.Context, id string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Public(), nil
}

func (s *AuthService) issue(u *userdomain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u.Public(), Token: token, ExpiresAt: expiresAt}, nil
}

// emit publishes an auth event without blocking the caller.
func (s *AuthService) emit(t telemetrydomain.EventType, uid, origin string, err error) {
	if s.events == nil {
		return
	}
	ev := &telemetrydomain.AuthEvent{
		ID:         uuid.New().String(),
		Type:       t,
		Outcome:    telemetrydomain.OutcomeSuccess,
		UserID:     uid,
		Origin:     origin,
		OccurredAt: s.now().UTC(),
	}
	if err != nil {
		ev.Outcome = telemetrydomain.OutcomeFailure
		ev.Reason = string(apperror.KindOf(err))
	}
	telemetry.EmitAsync(s.events, s.log, ev)
}

func validateEmail(addr string) error {
	if addr == "" {
		return ErrEmailRequired
	}
	if !simpleEmail.MatchString(addr) {
		return ErrInvalidEmail
	}
	return nil
}

func userID(u *userdomain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func resultUserID(r *AuthResult) string {
	if r == nil || r.User == nil {
		return ""
	}
	return r.User.ID
}
