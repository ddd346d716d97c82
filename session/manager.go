package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"faturas/distributor"
	"faturas/model"
	"faturas/provider"
)

var ErrNoToken = errors.New("session: no token in browser storage")

type State int

const (
	LoggedOut State = iota
	LoggingIn
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case LoggingIn:
		return "logging_in"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "logged_out"
	}
}

// Settings locate the portal login form and bound its waits.
type Settings struct {
	RevealSelector   string
	RevealPattern    string
	FallbackSelector string
	UserField        string
	PasswordField    string
	SubmitSelector   string
	FieldWait        time.Duration
	Settle           time.Duration
	MustResetBanners []string
	InvalidBanners   []string
}

func DefaultSettings() Settings {
	return Settings{
		RevealSelector:   "button, a, span",
		RevealPattern:    "/login/i",
		FallbackSelector: "div, li, p, label, input",
		UserField:        "#username",
		PasswordField:    "#password",
		SubmitSelector:   "button[type='submit']",
		FieldWait:        20 * time.Second,
		Settle:           5 * time.Second,
		MustResetBanners: []string{
			"senha precisa ser alterada",
			"necessário alterar sua senha",
			"sua senha expirou",
		},
		InvalidBanners: []string{
			"documento ou senha inválidos",
			"documento ou senha inválido",
			"usuário ou senha inválidos",
		},
	}
}

// Manager owns the single authenticated browser session of a run. It is
// not safe for concurrent use; the orchestrator drives it sequentially.
type Manager struct {
	driver   Driver
	settings Settings
	log      logrus.FieldLogger
	sleep    func(context.Context, time.Duration) error

	state       State
	loginID     string
	token       string
	failedLogin string
	failure     model.Result
	logins      int
}

func NewManager(driver Driver, settings Settings, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{driver: driver, settings: settings, log: log, sleep: sleepContext}
}

// SetSleep replaces the post-submit settle wait.
func (m *Manager) SetSleep(fn func(context.Context, time.Duration) error) { m.sleep = fn }

func (m *Manager) State() State { return m.state }

// Logins counts the login attempts performed so far.
func (m *Manager) Logins() int { return m.logins }

// Ensure returns a bearer token valid for rec, logging in when this is the
// first record, when the login differs from the current session, or when
// the token has vanished from browser storage. Credential failures are
// remembered for the login so later records sharing it fail fast.
func (m *Manager) Ensure(ctx context.Context, rec model.AccountRecord, profile distributor.Profile, a provider.Adapter) (string, model.Result) {
	log := m.log.WithFields(logrus.Fields{"distributor": profile.Name, "login": maskLogin(rec.LoginID)})

	if m.failedLogin != "" {
		if rec.LoginID == m.failedLogin {
			log.WithField("outcome", m.failure.Outcome).Info("skipping login already known to fail")
			return "", m.failure
		}
		m.failedLogin = ""
		m.failure = model.Result{}
	}

	if m.state == Authenticated && rec.LoginID == m.loginID {
		token, err := m.readToken(ctx, a)
		if err == nil {
			m.token = token
			return token, model.Result{}
		}
		log.WithError(err).Info("session expired")
		m.state = Expired
	}

	if res := m.login(ctx, rec, profile, log); !res.OK() {
		m.state = LoggedOut
		m.loginID = ""
		m.token = ""
		if res.Outcome == model.OutcomeInvalidCredentials || res.Outcome == model.OutcomeMustResetPassword {
			m.failedLogin = rec.LoginID
			m.failure = res
		}
		return "", res
	}

	m.state = Authenticated
	m.loginID = rec.LoginID

	token, err := m.readToken(ctx, a)
	if err != nil {
		log.WithError(err).Warn("login succeeded without a token")
		return "", model.Fail(model.OutcomeSystemError, "session: no token after login")
	}
	m.token = token
	return token, model.Result{}
}

func (m *Manager) login(ctx context.Context, rec model.AccountRecord, profile distributor.Profile, log logrus.FieldLogger) model.Result {
	m.state = LoggingIn
	s := m.settings
	log.Info("logging in")

	// A previous session's token must not survive into the next login.
	if m.logins > 0 {
		if err := m.driver.ClearStorage(ctx); err != nil {
			return model.Fail(model.OutcomeSystemError, fmt.Sprintf("session: clear storage: %v", err))
		}
	}
	m.logins++

	if err := m.driver.Navigate(ctx, profile.LoginURL); err != nil {
		return model.Fail(model.OutcomeSystemError, fmt.Sprintf("session: navigate: %v", err))
	}

	if err := m.driver.ClickByText(ctx, s.RevealSelector, s.RevealPattern); err != nil {
		if err := m.driver.ClickByText(ctx, s.FallbackSelector, s.RevealPattern); err != nil {
			log.WithError(err).Warn("login reveal control not found, trying the form directly")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.FieldWait)
	defer cancel()
	if err := m.driver.FillField(waitCtx, s.UserField, rec.LoginID); err != nil {
		return model.Fail(model.OutcomeInvalidCredentials, fmt.Sprintf("session: user field: %v", err))
	}
	if err := m.driver.FillField(waitCtx, s.PasswordField, rec.Password); err != nil {
		return model.Fail(model.OutcomeInvalidCredentials, fmt.Sprintf("session: password field: %v", err))
	}
	if err := m.driver.Submit(ctx, s.SubmitSelector); err != nil {
		return model.Fail(model.OutcomeSystemError, fmt.Sprintf("session: submit: %v", err))
	}

	if err := m.sleep(ctx, s.Settle); err != nil {
		return model.Fail(model.OutcomeSystemError, fmt.Sprintf("session: settle: %v", err))
	}

	text, err := m.driver.PageText(ctx)
	if err != nil {
		log.WithError(err).Warn("could not read page after login")
		return model.Result{}
	}
	text = strings.ToLower(text)
	if containsAny(text, s.MustResetBanners) {
		return model.Fail(model.OutcomeMustResetPassword, "session: password must be changed")
	}
	if containsAny(text, s.InvalidBanners) {
		return model.Fail(model.OutcomeInvalidCredentials, "session: invalid document or password")
	}
	return model.Result{}
}

func (m *Manager) readToken(ctx context.Context, a provider.Adapter) (string, error) {
	for _, key := range a.StorageKeys() {
		raw, err := m.driver.ReadStorage(ctx, key)
		if err != nil {
			m.log.WithError(err).WithField("key", key).Debug("storage read failed")
			continue
		}
		if token := a.ExtractToken(raw); token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}

// Close releases the browser.
func (m *Manager) Close() error {
	m.state = LoggedOut
	return m.driver.Close()
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func maskLogin(login string) string {
	if len(login) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(login)-4) + login[len(login)-4:]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
