package sessionkit

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/workhive/sessionkit/apiclient"
	"github.com/workhive/sessionkit/store"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until [Engine.Initialize].
type Builder struct {
	config     Config
	store      store.Store
	httpClient *http.Client
	logger     zerolog.Logger
	loggerSet  bool
	sink       NoticeSink

	built bool
}

// New returns a builder seeded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the persistent store. Defaults to an in-memory store, which
// means no durability across restarts.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithRedis is a convenience for WithStore(store.NewRedis(client, "")).
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.store = store.NewRedis(client, "")
	return b
}

// WithHTTPClient sets the transport for identity-API calls. The configured
// API timeout is only applied to clients the builder creates itself.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	b.loggerSet = true
	return b
}

// WithNoticeSink sets the lifecycle-event sink. Defaults to [NoOpSink].
func (b *Builder) WithNoticeSink(sink NoticeSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and wires the engine. A builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if b.loggerSet {
		log = b.logger
	}
	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}
	st := b.store
	if st == nil {
		st = store.NewMemory()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	tokens := newTokenManager(st, cfg.Session.TokenKey)
	api, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
	}, tokens, httpClient)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		log:      log,
		sink:     sink,
		store:    st,
		tokens:   tokens,
		progress: newProgressTracker(st, cfg.Session.ProgressKey, log),
		api:      api,
	}, nil
}
