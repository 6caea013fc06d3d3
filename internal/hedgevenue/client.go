// Package hedgevenue is a reference implementation of mmtypes.HedgeVenue
// against a Kraken-shaped private REST API: nonce-plus-HMAC signed POST
// requests with a timeout, retried on transport errors and 5xx responses
// the way the teacher's CLOB REST client is. There is no client-side rate
// limiting.
package hedgevenue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// Client is the REST hedge-venue client. Satisfies mmtypes.HedgeVenue.
type Client struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	nonce     int64
	logger    *slog.Logger
}

// NewClient creates a hedge-venue REST client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:      httpClient,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		nonce:     time.Now().UnixMilli(),
		logger:    logger.With("component", "hedgevenue"),
	}
}

type krakenResponse struct {
	Error  []string        `json:"error"`
	Result addOrderResult  `json:"result"`
}

type addOrderResult struct {
	TxID        []string                        `json:"txid"`
	Descr       map[string]string               `json:"descr"`
	Open        map[string]krakenOrderInfo       `json:"open"`
	Closed      map[string]krakenOrderInfo       `json:"closed"`
	Count       int                              `json:"count"`
}

type krakenOrderInfo struct {
	Status  string `json:"status"`
	VolExec string `json:"vol_exec"`
	Price   string `json:"price"`
}

// privateRequest signs and posts to a Kraken-shaped private endpoint,
// returning the raw decoded response.
func (c *Client) privateRequest(ctx context.Context, path string, params url.Values) (krakenResponse, error) {
	nonce := strconv.FormatInt(atomic.AddInt64(&c.nonce, 1), 10)
	params.Set("nonce", nonce)
	postData := params.Encode()

	sig, err := sign(path, nonce, postData, c.apiSecret)
	if err != nil {
		return krakenResponse{}, fmt.Errorf("sign request: %w", err)
	}

	var result krakenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("API-Key", c.apiKey).
		SetHeader("API-Sign", sig).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(postData).
		SetResult(&result).
		Post(path)
	if err != nil {
		return krakenResponse{}, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return krakenResponse{}, fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	if len(result.Error) > 0 {
		return krakenResponse{}, fmt.Errorf("%s: %s", path, strings.Join(result.Error, "; "))
	}
	return result, nil
}

// AddOrder places a limit or market order on the hedge venue.
func (c *Client) AddOrder(ctx context.Context, req mmtypes.HedgeOrderRequest) (mmtypes.HedgeOrderAck, error) {
	params := url.Values{}
	params.Set("pair", req.Pair)
	params.Set("type", sideToKraken(req.Side))
	params.Set("ordertype", req.OrderType)
	params.Set("volume", req.Volume.String())
	if req.OrderType == "limit" {
		params.Set("price", req.Price.String())
	}

	result, err := c.privateRequest(ctx, "/0/private/AddOrder", params)
	if err != nil {
		return mmtypes.HedgeOrderAck{}, err
	}
	return mmtypes.HedgeOrderAck{TxIDs: result.TxID}, nil
}

// QueryOrders fetches current state for a set of transaction ids.
func (c *Client) QueryOrders(ctx context.Context, txIDs []string) (map[string]mmtypes.HedgeOrderState, error) {
	if len(txIDs) == 0 {
		return map[string]mmtypes.HedgeOrderState{}, nil
	}
	params := url.Values{}
	params.Set("txid", strings.Join(txIDs, ","))

	nonce := strconv.FormatInt(atomic.AddInt64(&c.nonce, 1), 10)
	params.Set("nonce", nonce)
	postData := params.Encode()
	path := "/0/private/QueryOrders"

	sig, err := sign(path, nonce, postData, c.apiSecret)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	var raw struct {
		Error  []string                   `json:"error"`
		Result map[string]krakenOrderInfo `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("API-Key", c.apiKey).
		SetHeader("API-Sign", sig).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(postData).
		SetResult(&raw).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	if len(raw.Error) > 0 {
		return nil, fmt.Errorf("%s: %s", path, strings.Join(raw.Error, "; "))
	}

	out := make(map[string]mmtypes.HedgeOrderState, len(raw.Result))
	for txID, info := range raw.Result {
		volExec, _ := decimal.NewFromString(info.VolExec)
		price, _ := decimal.NewFromString(info.Price)
		out[txID] = mmtypes.HedgeOrderState{
			Status:  krakenStatusToHedge(info.Status),
			VolExec: volExec,
			Price:   price,
		}
	}
	return out, nil
}

// CancelOrder cancels a resting order by transaction id.
func (c *Client) CancelOrder(ctx context.Context, txID string) (int, error) {
	params := url.Values{}
	params.Set("txid", txID)

	result, err := c.privateRequest(ctx, "/0/private/CancelOrder", params)
	if err != nil {
		return 0, err
	}
	return result.Result.Count, nil
}

func sideToKraken(side mmtypes.Side) string {
	if side == mmtypes.Sell {
		return "sell"
	}
	return "buy"
}

func krakenStatusToHedge(status string) mmtypes.HedgeOrderStatusKind {
	switch status {
	case "open", "pending":
		return mmtypes.HedgeOpen
	case "closed":
		return mmtypes.HedgeClosed
	case "canceled":
		return mmtypes.HedgeCanceled
	case "expired":
		return mmtypes.HedgeExpired
	default:
		return mmtypes.HedgeOpen
	}
}
