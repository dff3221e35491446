package tripAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/tripAuth/internal/audit"
	"github.com/MrEthical07/tripAuth/internal/rate"
	"github.com/MrEthical07/tripAuth/jwt"
	"github.com/MrEthical07/tripAuth/password"
	"github.com/MrEthical07/tripAuth/registry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an Engine. Each Builder builds exactly once.
type Builder struct {
	config Config
	kv     registry.KV

	members   MemberProvider
	auditSink AuditSink
	logger    logrus.FieldLogger
	clock     func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the token registry and login throttle with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	if client != nil {
		b.kv = registry.NewRedisKV(client)
	}
	return b
}

// WithKV backs the token registry and login throttle with any KV, such as
// registry.MemoryKV for single-process use.
func (b *Builder) WithKV(kv registry.KV) *Builder {
	b.kv = kv
	return b
}

func (b *Builder) WithMemberProvider(mp MemberProvider) *Builder {
	b.members = mp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for token issuance and expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.kv == nil {
		return nil, errors.New("token registry store required: call WithRedis or WithKV")
	}
	if b.members == nil {
		return nil, errors.New("member provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	kv := timedKV{kv: b.kv, timeout: cfg.Registry.OperationTimeout}
	reg, err := registry.New(kv, registry.Keys{
		Access:    cfg.Registry.AccessPrefix,
		Refresh:   cfg.Registry.RefreshPrefix,
		Blacklist: cfg.Registry.BlacklistPrefix,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		registry:     reg,
		members:      b.members,
		passwordHash: ph,
		jwtManager:   jm,
		logger:       logger,
		clock:        clock,
		metrics:      NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if cfg.Security.EnableLoginThrottle {
		engine.rateLimiter = rate.New(kv, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}
	engine.flow = engine.buildFlowService()

	b.built = true

	return engine, nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
