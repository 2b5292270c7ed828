package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketbrief/premarket-cli/pkg/browserbase"
)

// ManagedConfig configures the remote provider adapter.
type ManagedConfig struct {
	SessionTTL      time.Duration
	AdvancedStealth bool
	SolveCaptchas   bool
	UseProxies      bool

	// OpensPerMinute throttles session creation; providers rate-limit it.
	// Zero disables throttling.
	OpensPerMinute int
}

// Managed adapts the browserbase client to the Provider interface.
type Managed struct {
	client  browserbase.Client
	cfg     ManagedConfig
	limiter *rate.Limiter
}

// NewManaged creates a provider over the given client.
func NewManaged(client browserbase.Client, cfg ManagedConfig) *Managed {
	var limiter *rate.Limiter
	if cfg.OpensPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.OpensPerMinute)/60.0), 1)
	}
	return &Managed{client: client, cfg: cfg, limiter: limiter}
}

func (m *Managed) Name() string { return "managed" }

// Open leases a fresh remote session.
func (m *Managed) Open(ctx context.Context) (Handle, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "session: rate limit wait")
		}
	}

	sess, err := m.client.CreateSession(ctx, browserbase.CreateSessionRequest{
		AdvancedStealth: m.cfg.AdvancedStealth,
		SolveCaptchas:   m.cfg.SolveCaptchas,
		UseProxies:      m.cfg.UseProxies,
		TTLSeconds:      int(m.cfg.SessionTTL.Seconds()),
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("session: opened",
		zap.String("provider", m.Name()),
		zap.String("session_id", sess.ID),
	)
	return &managedHandle{client: m.client, id: sess.ID}, nil
}

type managedHandle struct {
	client browserbase.Client
	id     string
}

func (h *managedHandle) ID() string { return h.id }
func (h *managedHandle) Page() Page { return &managedPage{client: h.client, id: h.id} }

// Close releases the remote session. Release failures are logged, not
// returned: the caller's result must not depend on teardown.
func (h *managedHandle) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.client.ReleaseSession(ctx, h.id); err != nil {
		zap.L().Warn("session: release failed",
			zap.String("session_id", h.id),
			zap.Error(err),
		)
		return err
	}
	return nil
}

type managedPage struct {
	client browserbase.Client
	id     string
}

func (p *managedPage) Navigate(ctx context.Context, url string) error {
	return p.client.Navigate(ctx, p.id, browserbase.NavigateRequest{
		URL:       url,
		WaitUntil: "networkidle",
	})
}

func (p *managedPage) Act(ctx context.Context, instruction string, secrets ...Credential) error {
	return p.client.Act(ctx, p.id, browserbase.ActRequest{
		Instruction: instruction,
		Secrets:     secretMap(secrets),
	})
}

func (p *managedPage) Extract(ctx context.Context, instruction string, out any) error {
	schema, err := SchemaFor(out)
	if err != nil {
		return err
	}
	raw, err := p.client.Extract(ctx, p.id, browserbase.ExtractRequest{
		Instruction: instruction,
		Schema:      schema,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "session: decode extract payload")
	}
	return nil
}

func (p *managedPage) Text(ctx context.Context) (string, error) {
	resp, err := p.client.PageText(ctx, p.id)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (p *managedPage) URL(ctx context.Context) string {
	resp, err := p.client.PageText(ctx, p.id)
	if err != nil {
		return ""
	}
	return resp.URL
}
