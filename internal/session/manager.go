package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/tokenstore"
	"github.com/Domenick1991/tailorbook/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	sessionsPath = "/auth/session/"

	renewTimeout = 30 * time.Second
)

type Config struct {
	BaseURL       string
	RenewalBuffer time.Duration
	MinimumDelay  time.Duration
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// ExpiredEvent is delivered when the session can no longer be renewed.
// LastPath is the last API path the caller was working with.
type ExpiredEvent struct {
	At       time.Time
	Cause    error
	LastPath string
}

// Request describes one API call. Body is kept as bytes so the call can be
// replayed after a renewal.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Header      http.Header
}

// Manager owns the access/refresh token pair of one user. It persists every
// change to its Store, renews the access token ahead of expiry, and retries a
// request once after a 401.
type Manager struct {
	baseURL       string
	httpClient    *http.Client
	store         tokenstore.Store
	clock         Clock
	log           *zap.Logger
	renewalBuffer time.Duration
	minimumDelay  time.Duration

	mu         sync.Mutex
	session    domain.Session
	timer      Timer
	generation uint64
	lastPath   string
	handlers   map[uint64]func(ExpiredEvent)
	nextID     uint64

	renewals singleflight.Group
}

func NewManager(cfg Config, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		store:         store,
		clock:         systemClock{},
		log:           zap.NewNop(),
		renewalBuffer: cfg.RenewalBuffer,
		minimumDelay:  cfg.MinimumDelay,
		handlers:      make(map[uint64]func(ExpiredEvent)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init restores a persisted session and schedules its renewal.
func (m *Manager) Init(ctx context.Context) error {
	stored, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if stored == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = *stored
	m.generation++
	if m.session.CanRenew() {
		m.scheduleLocked()
	}
	m.log.Debug("session restored", zap.Time("access_expires_at", stored.AccessExpiresAt), zap.Bool("renewable", stored.CanRenew()))
	return nil
}

// Close stops the renewal timer. The persisted session is left in place.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.generation++
}

func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		s.CurrentUser = &u
	}
	return s
}

func (m *Manager) CurrentUser() *domain.User {
	return m.Session().CurrentUser
}

func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.AccessToken != ""
}

// RenewalScheduled reports whether a proactive renewal timer is pending.
func (m *Manager) RenewalScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// OnSessionExpired registers h and returns a function that removes it.
func (m *Manager) OnSessionExpired(h func(ExpiredEvent)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = h
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) Login(ctx context.Context, creds Credentials) (domain.Session, error) {
	if fields := validate.Fields(&creds); len(fields) > 0 {
		return domain.Session{}, &domain.AuthError{FieldErrors: fields}
	}

	resp, err := m.authenticate(ctx, actionLogin, creds)
	if err != nil {
		return domain.Session{}, err
	}
	if resp.Access == "" {
		return domain.Session{}, &domain.AuthError{Detail: "login response carried no access token"}
	}
	return m.establish(ctx, resp)
}

// Register creates the account. When the backend does not hand out tokens on
// registration the same credentials are used to log in.
func (m *Manager) Register(ctx context.Context, reg Registration) (domain.Session, error) {
	if fields := validate.Fields(&reg); len(fields) > 0 {
		return domain.Session{}, &domain.AuthError{FieldErrors: fields}
	}

	resp, err := m.authenticate(ctx, actionRegister, reg)
	if err != nil {
		return domain.Session{}, err
	}
	if resp.Access == "" {
		m.log.Debug("registration returned no tokens, logging in", zap.String("username", reg.Username))
		return m.Login(ctx, Credentials{Username: reg.Username, Password: reg.Password})
	}
	return m.establish(ctx, resp)
}

// Renew exchanges the refresh token for a new access token. Concurrent
// callers share a single exchange. Any failure of the exchange ends the
// session; a caller whose context ends first gets ctx.Err() and the
// exchange carries on for the others.
func (m *Manager) Renew(ctx context.Context) (domain.Session, error) {
	return m.renewFrom(ctx, "")
}

// renewFrom renews unless the access token already moved past stale. An
// empty stale forces the exchange.
func (m *Manager) renewFrom(ctx context.Context, stale string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	ch := m.renewals.DoChan("renew", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renewTimeout)
		defer cancel()
		return m.renew(rctx, stale)
	})
	select {
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Session{}, res.Err
		}
		return res.Val.(domain.Session), nil
	}
}

func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	m.log.Info("logged out")
	return nil
}

// Do performs an authorized call. A 401 triggers one renewal and one retry;
// a 401 on the retry ends the session.
func (m *Manager) Do(ctx context.Context, req Request) (*http.Response, error) {
	return m.do(ctx, req, false)
}

func (m *Manager) do(ctx context.Context, req Request, isRetry bool) (*http.Response, error) {
	m.mu.Lock()
	token := m.session.AccessToken
	hasSession := !m.session.Empty()
	gen := m.generation
	m.lastPath = req.Path
	m.mu.Unlock()

	resp, err := m.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if !hasSession {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, domain.ErrNotAuthenticated)
	}
	if isRetry {
		m.log.Warn("request unauthorized after renewal", zap.String("path", req.Path))
		m.expire(gen, fmt.Errorf("%s %s: unauthorized after renewal", req.Method, req.Path))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, domain.ErrSessionExpired)
	}

	m.mu.Lock()
	current := m.session.AccessToken
	m.mu.Unlock()
	if current != "" && current != token {
		// renewed by another caller while this request was in flight
		return m.do(ctx, req, true)
	}

	if _, err := m.renewFrom(ctx, token); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.Path, domain.ErrSessionExpired, err)
	}
	return m.do(ctx, req, true)
}

func (m *Manager) send(ctx context.Context, r Request, token string) (*http.Response, error) {
	target := m.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		ct := r.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: method, URL: target, Err: err}
	}
	return resp, nil
}

// authenticate posts login or register and maps failures to AuthError.
func (m *Manager) authenticate(ctx context.Context, action string, payload interface{}) (sessionResponse, error) {
	status, body, err := m.postSession(ctx, action, payload)
	if err != nil {
		return sessionResponse{}, err
	}
	if status < 200 || status > 299 {
		return sessionResponse{}, parseAuthError(status, body)
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return sessionResponse{}, fmt.Errorf("decode %s response: %w", action, err)
	}
	return resp, nil
}

func (m *Manager) postSession(ctx context.Context, action string, payload interface{}) (int, []byte, error) {
	body, err := withAction(action, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s request: %w", action, err)
	}

	resp, err := m.send(ctx, Request{Method: http.MethodPost, Path: sessionsPath, Body: body}, "")
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &domain.NetworkError{Op: http.MethodPost, URL: m.baseURL + sessionsPath, Err: err}
	}
	return resp.StatusCode, data, nil
}

func (m *Manager) renew(ctx context.Context, stale string) (domain.Session, error) {
	m.mu.Lock()
	if stale != "" && m.session.AccessToken != "" && m.session.AccessToken != stale {
		// a previous exchange already replaced the token this caller saw
		current := m.session
		m.mu.Unlock()
		return current, nil
	}
	refresh := m.session.RefreshToken
	gen := m.generation
	m.mu.Unlock()

	if refresh == "" {
		err := &domain.RenewalError{Reason: "no refresh token"}
		m.expire(gen, err)
		return domain.Session{}, err
	}

	status, body, err := m.postSession(ctx, actionRefresh, map[string]string{"refresh": refresh})
	if err != nil {
		rerr := &domain.RenewalError{Reason: "token exchange failed", Err: err}
		m.expire(gen, rerr)
		return domain.Session{}, rerr
	}
	if status < 200 || status > 299 {
		rerr := &domain.RenewalError{
			Reason: fmt.Sprintf("refresh rejected with status %d", status),
			Err:    &domain.APIError{Status: status, Detail: detailOf(body), Body: body},
		}
		m.expire(gen, rerr)
		return domain.Session{}, rerr
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Access == "" {
		rerr := &domain.RenewalError{Reason: "malformed refresh response", Err: err}
		m.expire(gen, rerr)
		return domain.Session{}, rerr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// logged out or replaced while the exchange was in flight
		if m.session.Empty() {
			return domain.Session{}, &domain.RenewalError{Reason: "session ended during renewal"}
		}
		return m.session, nil
	}

	next := m.session
	next.AccessToken = resp.Access
	if resp.Refresh != "" {
		next.RefreshToken = resp.Refresh
	}
	next.AccessExpiresAt = accessExpiry(resp)
	if resp.User != nil {
		next.CurrentUser = resp.User
	}
	m.applyLocked(ctx, next)
	m.log.Debug("access token renewed", zap.Time("access_expires_at", next.AccessExpiresAt))
	return next, nil
}

func (m *Manager) establish(ctx context.Context, resp sessionResponse) (domain.Session, error) {
	next := domain.Session{
		AccessToken:     resp.Access,
		RefreshToken:    resp.Refresh,
		AccessExpiresAt: accessExpiry(resp),
		CurrentUser:     resp.User,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(ctx, next)

	fields := []zap.Field{zap.Time("access_expires_at", next.AccessExpiresAt)}
	if next.CurrentUser != nil {
		fields = append(fields, zap.String("username", next.CurrentUser.Username), zap.String("role", string(next.CurrentUser.Role)))
	}
	m.log.Info("session established", fields...)
	return next, nil
}

// applyLocked installs next as the current session, persists it in one
// store write and reschedules renewal.
func (m *Manager) applyLocked(ctx context.Context, next domain.Session) {
	if err := m.store.Save(ctx, next); err != nil {
		m.log.Warn("persist session failed", zap.Error(err))
	}
	m.session = next
	m.generation++
	if next.CanRenew() {
		m.scheduleLocked()
	} else {
		m.stopTimerLocked()
	}
}

func (m *Manager) scheduleLocked() {
	m.stopTimerLocked()

	delay := RenewalDelay(m.clock.Now(), m.session.AccessExpiresAt, m.renewalBuffer, m.minimumDelay)
	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() { m.renewOnTimer(gen) })
	m.log.Debug("renewal scheduled", zap.Duration("in", delay))
}

func (m *Manager) renewOnTimer(gen uint64) {
	m.mu.Lock()
	stale := gen != m.generation
	if !stale {
		m.timer = nil
	}
	m.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()
	if _, err := m.Renew(ctx); err != nil {
		m.log.Warn("scheduled renewal failed", zap.Error(err))
	}
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) teardownLocked() {
	m.stopTimerLocked()
	m.session = domain.Session{}
	m.generation++
}

// expire tears down the session of generation gen and notifies handlers.
// Later calls for the same generation are no-ops, so handlers fire once.
func (m *Manager) expire(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	hadSession := !m.session.Empty()
	m.teardownLocked()
	if err := m.store.Clear(context.Background()); err != nil {
		m.log.Warn("clear stored session failed", zap.Error(err))
	}
	event := ExpiredEvent{At: m.clock.Now(), Cause: cause, LastPath: m.lastPath}

	ids := make([]uint64, 0, len(m.handlers))
	for id := range m.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(ExpiredEvent), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, m.handlers[id])
	}
	m.mu.Unlock()

	if !hadSession {
		return
	}
	m.log.Warn("session expired", zap.Error(cause), zap.String("last_path", event.LastPath))
	for _, h := range handlers {
		h(event)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
