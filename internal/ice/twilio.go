package ice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioBroker requests Network Traversal Service tokens from Twilio.
type TwilioBroker struct {
	accountSID string
	authToken  string
	static     []domain.ICEServer
	client     *http.Client
	baseURL    string
}

func NewTwilioBroker(accountSID, authToken string, static []domain.ICEServer, client *http.Client) *TwilioBroker {
	return &TwilioBroker{
		accountSID: accountSID,
		authToken:  authToken,
		static:     static,
		client:     client,
		baseURL:    twilioBaseURL,
	}
}

type twilioTokenResponse struct {
	ICEServers []struct {
		URL        string `json:"url"`
		URLs       string `json:"urls"`
		Username   string `json:"username"`
		Credential string `json:"credential"`
	} `json:"ice_servers"`
}

func (b *TwilioBroker) ICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	url := fmt.Sprintf("%s/Accounts/%s/Tokens.json", b.baseURL, b.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(b.accountSID, b.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call token API: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: token API returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var tokenResp twilioTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", ErrUnavailable, err)
	}

	servers := copyServers(b.static)
	for _, s := range tokenResp.ICEServers {
		u := s.URLs
		if u == "" {
			u = s.URL
		}
		if u == "" {
			continue
		}
		servers = append(servers, domain.ICEServer{
			URLs:       []string{u},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: token response carried no servers", ErrUnavailable)
	}
	return WithSTUNFallback(servers), nil
}
