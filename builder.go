package costscope

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/costscope/costscope-go/api"
	internalaudit "github.com/costscope/costscope-go/internal/audit"
	"github.com/costscope/costscope-go/internal/flows"
	"github.com/costscope/costscope-go/notify"
	"github.com/costscope/costscope-go/session"
	"github.com/costscope/costscope-go/storage"
	"github.com/costscope/costscope-go/token"
)

// Builder assembles an Engine. Zero or more With* calls, then Build.
//
//	engine, err := costscope.New().
//		WithBaseURL("https://app.costscope.io").
//		WithStorage(store).
//		Build()
type Builder struct {
	cfg         Config
	cfgErr      error
	apiClient   AuthAPI
	httpClient  *http.Client
	redisClient *redis.Client
	store       storage.Store
	navigator   notify.Navigator
	auditSink   AuditSink
}

// New starts a builder with default configuration.
func New() *Builder {
	return &Builder{cfg: defaultConfig()}
}

// WithConfig replaces the configuration wholesale. Zero-valued fields are
// filled from the defaults at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cloneConfig(cfg)
	return b
}

// WithConfigFile loads YAML configuration over the defaults. A load failure
// is reported by Build.
func (b *Builder) WithConfigFile(path string) *Builder {
	cfg, err := LoadConfig(path)
	if err != nil {
		b.cfgErr = err
		return b
	}
	b.cfg = cfg
	return b
}

// WithBaseURL sets the backend origin, e.g. "https://app.costscope.io".
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.cfg.API.BaseURL = baseURL
	return b
}

// WithAPI supplies a pre-built wire client, bypassing BaseURL entirely.
// Tests and embedders with custom transports use this.
func (b *Builder) WithAPI(client AuthAPI) *Builder {
	b.apiClient = client
	return b
}

// WithHTTPClient supplies the http.Client behind the default wire client.
// Ignored when WithAPI is used.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithRedis selects Redis-backed session persistence using the given client.
func (b *Builder) WithRedis(rdb *redis.Client) *Builder {
	b.redisClient = rdb
	b.cfg.Storage.Backend = "redis"
	return b
}

// WithStorage supplies an explicit persistence backend, overriding the
// configured one.
func (b *Builder) WithStorage(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithNavigator supplies the application's location hook for the expiry
// redirect fallback.
func (b *Builder) WithNavigator(nav notify.Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithAuditSink enables the audit dispatcher and routes events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.cfg.Audit.Enabled = true
	return b
}

// WithMetrics enables the in-process counters.
func (b *Builder) WithMetrics() *Builder {
	b.cfg.Metrics.Enabled = true
	return b
}

// WithLatencyHistograms enables the renewal latency histogram alongside the
// counters.
func (b *Builder) WithLatencyHistograms() *Builder {
	b.cfg.Metrics.Enabled = true
	b.cfg.Metrics.EnableLatencyHistograms = true
	return b
}

// Build validates the configuration, resolves the persistence backend,
// rehydrates any persisted session, and wires the flow layer.
func (b *Builder) Build() (*Engine, error) {
	if b.cfgErr != nil {
		return nil, b.cfgErr
	}

	cfg := fillDefaults(cloneConfig(b.cfg))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiClient := b.apiClient
	if apiClient == nil {
		if cfg.API.BaseURL == "" {
			return nil, errors.New("costscope: an API BaseURL or a client via WithAPI is required")
		}
		client, err := api.NewClient(api.Config{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			UserAgent: cfg.API.UserAgent,
		}, b.httpClient)
		if err != nil {
			return nil, err
		}
		apiClient = client
	}

	store, err := b.resolveStorage(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		apiClient: apiClient,
		notifier: notify.New(notify.Config{
			LoginPath:     cfg.Notify.LoginPath,
			RedirectDelay: cfg.Notify.RedirectDelay,
			VerifyDelay:   cfg.Notify.VerifyDelay,
		}, b.navigator),
		metrics: NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		inspector: token.NewInspector(cfg.Renewal.ProactiveLeeway),
		mirror:    newMirrorDispatcher(store, cfg.Storage.MirrorBuffer),
	}

	// Every store mutation feeds the mirror; the mutator never blocks on the
	// durable write.
	e.sessions = session.NewStore(func(seq uint64, snap session.Snapshot) {
		if e.mirror == nil {
			return
		}
		before := e.mirror.Dropped()
		e.mirror.Enqueue(seq, snap)
		if e.mirror.Dropped() > before {
			e.metrics.Inc(MetricMirrorDropped)
		}
	})

	e.rehydrate(store)
	e.flows = flows.New(b.flowDeps(e, cfg, apiClient))
	return e, nil
}

func (b *Builder) resolveStorage(cfg Config) (storage.Store, error) {
	switch {
	case b.store != nil:
		return b.store, nil
	case b.redisClient != nil:
		return storage.NewRedisStore(b.redisClient, cfg.Storage.Namespace), nil
	case cfg.Storage.Backend == "redis":
		return nil, errors.New("costscope: redis backend selected but no client supplied (use WithRedis)")
	case cfg.Storage.FilePath != "":
		return storage.NewFileStore(cfg.Storage.FilePath), nil
	default:
		// No persistence configured: the session lives in memory only.
		return nil, nil
	}
}

// rehydrate restores the persisted session, if any. An unreadable record is
// discarded, never fatal: the user simply starts logged out.
func (e *Engine) rehydrate(store storage.Store) {
	if store == nil {
		return
	}
	ctx := context.Background()

	rec, err := store.Load(ctx)
	switch {
	case err == nil:
		snap := rec.Snapshot()
		e.sessions.Restore(snap)
		if snap.Authenticated {
			e.notifier.Arm()
		}
		e.metrics.Inc(MetricSessionRestored)
		e.emitAudit(AuditEvent{EventType: "session_restored", Success: true})
	case errors.Is(err, storage.ErrNotFound):
		// first run, start empty
	default:
		log.Printf("costscope: discarding unreadable session record: %v", err)
		e.metrics.Inc(MetricSessionRestoreCorrupt)
		e.emitAudit(AuditEvent{EventType: "session_restored", Success: false, Error: err.Error()})
		_ = store.Clear(ctx)
	}
}

func (b *Builder) flowDeps(e *Engine, cfg Config, apiClient AuthAPI) flows.Deps {
	detach := func() { e.flows.DetachRenewal() }

	return flows.Deps{
		Login: flows.LoginDeps{
			Authenticate: func(ctx context.Context, email, password string) (*flows.Grant, error) {
				grant, err := apiClient.Login(ctx, email, password)
				if err != nil {
					return nil, err
				}
				return grantFromAPI(grant), nil
			},
			SaveSession:     e.sessions.Login,
			ArmNotifier:     func() { e.notifier.Arm() },
			DetachRenewal:   detach,
			ErrMissingInput: ErrMissingInput,
		},
		Register: flows.RegisterDeps{
			CreateAccount: func(ctx context.Context, input flows.RegisterInput) (*flows.Grant, error) {
				grant, err := apiClient.Register(ctx, api.RegisterRequest{
					OrganizationName: input.OrganizationName,
					Email:            input.Email,
					Password:         input.Password,
					FullName:         input.FullName,
					VerificationCode: input.VerificationCode,
				})
				if err != nil {
					return nil, err
				}
				return grantFromAPI(grant), nil
			},
			SaveSession:     e.sessions.Login,
			ArmNotifier:     func() { e.notifier.Arm() },
			DetachRenewal:   detach,
			ErrMissingInput: ErrMissingInput,
		},
		Renew: flows.RenewDeps{
			RefreshCredential: e.sessions.RefreshCredential,
			RenewalExhausted:  e.sessions.RenewalExhausted,
			Exchange: func(ctx context.Context, refreshCredential string) (string, string, error) {
				pair, err := apiClient.Refresh(ctx, refreshCredential)
				if err != nil {
					return "", "", err
				}
				return pair.AccessToken, pair.RefreshToken, nil
			},
			IsUnauthorized: api.IsUnauthorized,
			ApplyRenewal:   e.sessions.ApplyRenewal,
			MarkExhausted:  e.sessions.MarkRenewalExhausted,
			Logout:         e.sessions.Logout,
			NotifyExpired: func() {
				episodeID, won := e.notifier.NotifyExpired(cfg.Notify.ExpiredMessage)
				if won {
					e.metrics.Inc(MetricExpiryNotified)
					e.emitAudit(AuditEvent{
						EventType: "session_expired",
						Episode:   episodeID,
						Success:   true,
					})
				}
			},
			RetainOnTransient: cfg.Renewal.RetainOnTransient,
			ErrNoCredential:   ErrNoRefreshCredential,
			ErrExhausted:      ErrRenewalExhausted,
		},
		Logout: flows.LogoutDeps{
			AccessCredential: e.sessions.AccessCredential,
			ClearSession:     e.sessions.Logout,
			DetachRenewal:    detach,
			ServerLogout:     apiClient.Logout,
			Warn:             log.Printf,
		},
		Principal: flows.PrincipalDeps{
			AccessCredential:    e.sessions.AccessCredential,
			Fetch:               apiClient.Me,
			FetchOrganization:   apiClient.Organization,
			UpdatePrincipal:     e.sessions.UpdatePrincipal,
			UpdateOrganization:  e.sessions.UpdateOrganization,
			ErrNotAuthenticated: ErrNotAuthenticated,
		},
	}
}

func grantFromAPI(g *api.Grant) *flows.Grant {
	return &flows.Grant{
		Access:            g.AccessToken,
		Refresh:           g.RefreshToken,
		ExpiresIn:         g.ExpiresIn,
		Principal:         g.User,
		Organization:      g.Organization,
		PendingActivation: g.RequiresActivation,
		Message:           g.Message,
	}
}

// fillDefaults substitutes defaults for zero-valued fields so a sparse
// WithConfig does not have to repeat them.
func fillDefaults(cfg Config) Config {
	def := defaultConfig()

	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = def.API.Timeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = def.API.UserAgent
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = def.Storage.Namespace
	}
	if cfg.Storage.MirrorBuffer == 0 {
		cfg.Storage.MirrorBuffer = def.Storage.MirrorBuffer
	}
	if cfg.Renewal.ProactiveLeeway == 0 {
		cfg.Renewal.ProactiveLeeway = def.Renewal.ProactiveLeeway
	}
	if cfg.Notify.LoginPath == "" {
		cfg.Notify.LoginPath = def.Notify.LoginPath
	}
	if cfg.Notify.ExpiredMessage == "" {
		cfg.Notify.ExpiredMessage = def.Notify.ExpiredMessage
	}
	if cfg.Notify.VerifyDelay == 0 {
		cfg.Notify.VerifyDelay = def.Notify.VerifyDelay
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}
