package ice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// DefaultSTUN is prepended when no configured server offers STUN.
const DefaultSTUN = "stun:stun.l.google.com:19302"

// ErrUnavailable wraps every credential provider failure.
var ErrUnavailable = errors.New("ice credentials unavailable")

// Broker issues relay-server descriptors for peer connection setup.
type Broker interface {
	ICEServers(ctx context.Context) ([]domain.ICEServer, error)
}

// New builds the broker named by cfg.Provider and wraps it in a cache.
func New(cfg config.ICEConfig) (Broker, error) {
	static := staticServers(cfg.Servers)
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var b Broker
	switch cfg.Provider {
	case "", "static":
		return NewStaticBroker(static), nil
	case "cloudflare":
		if cfg.TurnKeyID == "" || cfg.TurnKey == "" {
			return nil, fmt.Errorf("cloudflare provider requires turn_key_id and turn_key")
		}
		b = NewCloudflareBroker(cfg.TurnKeyID, cfg.TurnKey, static, httpClient)
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			return nil, fmt.Errorf("twilio provider requires twilio_account_sid and twilio_auth_token")
		}
		b = NewTwilioBroker(cfg.TwilioAccountSID, cfg.TwilioAuthToken, static, httpClient)
	default:
		return nil, fmt.Errorf("unsupported ice provider: %s", cfg.Provider)
	}

	l := pkglog.L()
	l.Info().Str("provider", cfg.Provider).Str("key", maskKey(cfg.TurnKey+cfg.TwilioAuthToken)).Msg("ice credential broker configured")

	return NewCachingBroker(b, cfg.CacheTTL, clock.New()), nil
}

func staticServers(cfgs []config.ICEServerConfig) []domain.ICEServer {
	servers := make([]domain.ICEServer, 0, len(cfgs))
	for _, s := range cfgs {
		if len(s.URLs) == 0 {
			continue
		}
		servers = append(servers, domain.ICEServer{
			URLs:       append([]string(nil), s.URLs...),
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

// WithSTUNFallback prepends DefaultSTUN unless some server already offers a stun: url.
func WithSTUNFallback(servers []domain.ICEServer) []domain.ICEServer {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(strings.ToLower(u), "stun:") {
				return servers
			}
		}
	}
	out := make([]domain.ICEServer, 0, len(servers)+1)
	out = append(out, domain.ICEServer{URLs: []string{DefaultSTUN}})
	return append(out, servers...)
}

// StaticBroker serves a fixed list.
type StaticBroker struct {
	servers []domain.ICEServer
}

func NewStaticBroker(servers []domain.ICEServer) *StaticBroker {
	return &StaticBroker{servers: servers}
}

func (b *StaticBroker) ICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	return WithSTUNFallback(copyServers(b.servers)), nil
}

func copyServers(in []domain.ICEServer) []domain.ICEServer {
	out := make([]domain.ICEServer, len(in))
	for i, s := range in {
		out[i] = s
		out[i].URLs = append([]string(nil), s.URLs...)
	}
	return out
}

// maskKey masks a key for logging purposes
func maskKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
