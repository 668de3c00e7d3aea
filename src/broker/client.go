package broker

// REST dealing client for an IG-style CFD gateway.
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

var ErrNotAuthenticated = errors.New("broker session not established")

type sessionResponse struct {
	ClientID        string `json:"clientId"`
	CurrentAccount  string `json:"currentAccountId"`
	LightstreamerEP string `json:"lightstreamerEndpoint"`
}

type dealResponse struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	DealID        string  `json:"dealId"`
	DealReference string  `json:"dealReference"`
	DealStatus    string  `json:"dealStatus"`
	Reason        string  `json:"reason"`
	Level         float64 `json:"level"`
	Status        string  `json:"status"`
}

// Deal is the confirmed outcome of an open or close request.
type Deal struct {
	DealID    string
	Reference string
	Level     float64
}

type openPositionRequest struct {
	Epic          string  `json:"epic"`
	Direction     string  `json:"direction"`
	Size          float64 `json:"size"`
	OrderType     string  `json:"orderType"`
	Expiry        string  `json:"expiry"`
	GuaranteedStp bool    `json:"guaranteedStop"`
	ForceOpen     bool    `json:"forceOpen"`
	StopLevel     float64 `json:"stopLevel,omitempty"`
	LimitLevel    float64 `json:"limitLevel,omitempty"`
	CurrencyCode  string  `json:"currencyCode"`
}

type closePositionRequest struct {
	DealID    string  `json:"dealId"`
	Direction string  `json:"direction"`
	Size      float64 `json:"size"`
	OrderType string  `json:"orderType"`
}

type updateStopRequest struct {
	StopLevel float64 `json:"stopLevel"`
}

// Client talks to the dealing gateway. With DryRun set it never performs
// HTTP calls and confirms every request locally, which is what backtest
// verification and paper trading run on.
type Client struct {
	cfg  Config
	http *resty.Client

	mu            sync.Mutex
	cst           string
	securityToken string
}

func NewClient(cfg Config) *Client {
	retryCount := defaultRetryAttempts - 1

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		cfg:  cfg,
		http: httpClient,
	}
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// Login establishes a dealing session and stores the security tokens the
// gateway returns as response headers.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.DryRun {
		logger.Info("[broker] dry-run mode, skipping login")
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-IG-API-KEY", c.cfg.APIKey).
		SetBody(map[string]string{
			"identifier": c.cfg.Username,
			"password":   c.cfg.Password,
		}).
		SetResult(&sessionResponse{}).
		Post("/session")
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("login rejected: %s: %s", resp.Status(), resp.String())
	}

	c.mu.Lock()
	c.cst = resp.Header().Get("CST")
	c.securityToken = resp.Header().Get("X-SECURITY-TOKEN")
	c.mu.Unlock()

	if c.cst == "" || c.securityToken == "" {
		return errors.New("login response missing session tokens")
	}

	logger.WithField("account", c.cfg.AccountID).Info("[broker] session established")
	return nil
}

func (c *Client) authedRequest(ctx context.Context) (*resty.Request, error) {
	c.mu.Lock()
	cst, token := c.cst, c.securityToken
	c.mu.Unlock()

	if cst == "" || token == "" {
		return nil, ErrNotAuthenticated
	}

	return c.http.R().
		SetContext(ctx).
		SetHeader("X-IG-API-KEY", c.cfg.APIKey).
		SetHeader("CST", cst).
		SetHeader("X-SECURITY-TOKEN", token), nil
}

// OpenPosition places a market order with attached stop and limit levels and
// waits for the deal confirmation.
func (c *Client) OpenPosition(ctx context.Context, epic string, side model.Side, size, stopLevel, limitLevel float64) (*Deal, error) {
	if c.cfg.DryRun {
		ref := uuid.NewString()
		logger.WithFields(logger.Fields{
			"epic": epic,
			"side": side,
			"size": size,
		}).Info("[broker] dry-run open")
		return &Deal{DealID: ref, Reference: ref}, nil
	}

	req, err := c.authedRequest(ctx)
	if err != nil {
		return nil, err
	}

	direction := "BUY"
	if side == model.SideShort {
		direction = "SELL"
	}

	resp, err := req.
		SetBody(openPositionRequest{
			Epic:         epic,
			Direction:    direction,
			Size:         size,
			OrderType:    "MARKET",
			Expiry:       "-",
			ForceOpen:    true,
			StopLevel:    stopLevel,
			LimitLevel:   limitLevel,
			CurrencyCode: "USD",
		}).
		SetResult(&dealResponse{}).
		Post("/positions/otc")
	if err != nil {
		return nil, fmt.Errorf("open position request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("open position rejected: %s: %s", resp.Status(), resp.String())
	}

	ref := resp.Result().(*dealResponse).DealReference
	return c.confirm(ctx, ref)
}

// ClosePosition closes an open deal with an opposing market order.
func (c *Client) ClosePosition(ctx context.Context, dealID string, side model.Side, size float64) (*Deal, error) {
	if c.cfg.DryRun {
		logger.WithFields(logger.Fields{
			"deal_id": dealID,
			"side":    side,
		}).Info("[broker] dry-run close")
		return &Deal{DealID: dealID, Reference: uuid.NewString()}, nil
	}

	req, err := c.authedRequest(ctx)
	if err != nil {
		return nil, err
	}

	// Closing direction opposes the position.
	direction := "SELL"
	if side == model.SideShort {
		direction = "BUY"
	}

	resp, err := req.
		SetHeader("_method", "DELETE").
		SetBody(closePositionRequest{
			DealID:    dealID,
			Direction: direction,
			Size:      size,
			OrderType: "MARKET",
		}).
		SetResult(&dealResponse{}).
		Post("/positions/otc")
	if err != nil {
		return nil, fmt.Errorf("close position request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("close position rejected: %s: %s", resp.Status(), resp.String())
	}

	ref := resp.Result().(*dealResponse).DealReference
	return c.confirm(ctx, ref)
}

// UpdateStop moves the stop of an open deal to a new level. Used by the
// trailing engine; the gateway rejects loosening moves, which we never send.
func (c *Client) UpdateStop(ctx context.Context, dealID string, stopLevel float64) error {
	if c.cfg.DryRun {
		logger.WithFields(logger.Fields{
			"deal_id": dealID,
			"stop":    stopLevel,
		}).Debug("[broker] dry-run stop update")
		return nil
	}

	req, err := c.authedRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetBody(updateStopRequest{StopLevel: stopLevel}).
		Put("/positions/otc/" + dealID)
	if err != nil {
		return fmt.Errorf("update stop request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("update stop rejected: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// IsOpen reports whether the deal is still open at the gateway. The live
// trader uses this to detect stops executed broker-side.
func (c *Client) IsOpen(ctx context.Context, dealID string) (bool, error) {
	if c.cfg.DryRun {
		return true, nil
	}

	req, err := c.authedRequest(ctx)
	if err != nil {
		return false, err
	}

	resp, err := req.Get("/positions/" + dealID)
	if err != nil {
		return false, fmt.Errorf("position lookup failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("position lookup rejected: %s: %s", resp.Status(), resp.String())
	}
	return true, nil
}

func (c *Client) confirm(ctx context.Context, dealReference string) (*Deal, error) {
	req, err := c.authedRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetResult(&confirmResponse{}).
		Get("/confirms/" + dealReference)
	if err != nil {
		return nil, fmt.Errorf("deal confirmation failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("deal confirmation rejected: %s: %s", resp.Status(), resp.String())
	}

	conf := resp.Result().(*confirmResponse)
	if conf.DealStatus != "ACCEPTED" {
		return nil, fmt.Errorf("deal %s not accepted: %s", dealReference, conf.Reason)
	}

	logger.WithFields(logger.Fields{
		"deal_id": conf.DealID,
		"level":   conf.Level,
	}).Info("[broker] deal confirmed")

	return &Deal{
		DealID:    conf.DealID,
		Reference: conf.DealReference,
		Level:     conf.Level,
	}, nil
}
