package ice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

const cloudflareBaseURL = "https://rtc.live.cloudflare.com/v1/turn/keys"

// CloudflareBroker generates short-lived TURN credentials from the Cloudflare Calls API.
type CloudflareBroker struct {
	keyID   string
	key     string
	static  []domain.ICEServer
	client  *http.Client
	baseURL string
	ttl     int
}

func NewCloudflareBroker(keyID, key string, static []domain.ICEServer, client *http.Client) *CloudflareBroker {
	return &CloudflareBroker{
		keyID:   keyID,
		key:     key,
		static:  static,
		client:  client,
		baseURL: cloudflareBaseURL,
		ttl:     86400,
	}
}

type cloudflareTURNResponse struct {
	ICEServers struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"iceServers"`
}

func (b *CloudflareBroker) ICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	url := fmt.Sprintf("%s/%s/credentials/generate", b.baseURL, b.keyID)
	reqBody, _ := json.Marshal(map[string]int{"ttl": b.ttl})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call TURN API: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// Cloudflare TURN API returns 201 (Created) on success
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: TURN API returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var turnResp cloudflareTURNResponse
	if err := json.NewDecoder(resp.Body).Decode(&turnResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode TURN response: %v", ErrUnavailable, err)
	}
	if len(turnResp.ICEServers.URLs) == 0 {
		return nil, fmt.Errorf("%w: TURN response carried no urls", ErrUnavailable)
	}

	servers := copyServers(b.static)
	servers = append(servers, domain.ICEServer{
		URLs:       turnResp.ICEServers.URLs,
		Username:   turnResp.ICEServers.Username,
		Credential: turnResp.ICEServers.Credential,
	})
	return WithSTUNFallback(servers), nil
}
