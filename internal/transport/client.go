package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/sentinel"
	"github.com/giantswarm/confsync/internal/wire"
)

// ErrNotModified is returned when the service answers 304: the caller's
// state is already current. This is a control-flow signal, not a failure.
const ErrNotModified = sentinel.Error("configuration not modified")

// ErrNamespaceNotFound is returned when the config service answers 404 for a
// namespace. The most common cause is a namespace that exists in the admin
// portal but has never been released.
const ErrNamespaceNotFound = sentinel.Error("namespace not found; check that it has been released")

// ServerHoldTimeout is how long the notification hub holds a long poll open
// before answering 304. The client read timeout must strictly exceed this so
// a held connection is always answered by the server rather than severed by
// the client.
const ServerHoldTimeout = 60 * time.Second

// DefaultPollReadTimeout is the default client-side read timeout for the
// notification long poll.
const DefaultPollReadTimeout = 90 * time.Second

// Client issues the protocol's HTTP requests. It is safe for concurrent use.
type Client struct {
	// fetch serves config fetches and meta-server discovery, with a short
	// timeout so a dead endpoint fails over quickly.
	fetch *resty.Client

	// poll serves the notification long poll with a read timeout above the
	// server hold.
	poll *resty.Client
}

// NewClient creates a Client. fetchTimeout bounds config and meta requests;
// pollReadTimeout bounds the long poll and must strictly exceed
// ServerHoldTimeout. A pollReadTimeout at or below the hold would make the
// client sever every held connection before the server's 304 arrives, so such
// values are rejected here rather than debugged in production: the guard
// logs a warning and substitutes DefaultPollReadTimeout.
func NewClient(fetchTimeout, pollReadTimeout time.Duration) *Client {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	if pollReadTimeout <= ServerHoldTimeout {
		logging.Logger().Warn("long-poll read timeout must strictly exceed the server hold timeout; using default",
			"configured", pollReadTimeout,
			"serverHold", ServerHoldTimeout,
			"effective", DefaultPollReadTimeout)
		pollReadTimeout = DefaultPollReadTimeout
	}
	return &Client{
		fetch: resty.New().SetTimeout(fetchTimeout),
		poll:  resty.New().SetTimeout(pollReadTimeout),
	}
}

// ConfigQuery names one config fetch. Optional fields are omitted from the
// query string when empty.
type ConfigQuery struct {
	Endpoint   string
	AppID      string
	Cluster    string
	Namespace  string
	ReleaseKey string
	DataCenter string
	ClientIP   string
	Messages   *wire.Messages
}

// GetConfig fetches one namespace's configuration.
//
// Returns ErrNotModified on 304 (the caller's release key is current),
// ErrNamespaceNotFound on 404, and a descriptive error for any other
// non-200 status.
func (c *Client) GetConfig(ctx context.Context, q ConfigQuery) (*wire.ConfigPayload, error) {
	u := joinURL(q.Endpoint, "configs", q.AppID, q.Cluster, q.Namespace)

	params := map[string]string{}
	if q.ReleaseKey != "" {
		params["releaseKey"] = q.ReleaseKey
	}
	if q.DataCenter != "" {
		params["dataCenter"] = q.DataCenter
	}
	if q.ClientIP != "" {
		params["ip"] = q.ClientIP
	}
	if !q.Messages.IsEmpty() {
		encoded, err := wire.EncodeMessages(q.Messages)
		if err != nil {
			return nil, err
		}
		params["messages"] = encoded
	}

	resp, err := c.fetch.R().SetContext(ctx).SetQueryParams(params).Get(u)
	if err != nil {
		return nil, fmt.Errorf("get config %s/%s from %s: %w", q.AppID, q.Namespace, q.Endpoint, err)
	}

	switch resp.StatusCode() {
	case 200:
		payload, err := wire.DecodeConfig(resp.Body())
		if err != nil {
			return nil, fmt.Errorf("config response from %s: %w", q.Endpoint, err)
		}
		return payload, nil
	case 304:
		return nil, ErrNotModified
	case 404:
		return nil, fmt.Errorf("namespace %q of app %q: %w", q.Namespace, q.AppID, ErrNamespaceNotFound)
	default:
		return nil, fmt.Errorf("get config %s/%s from %s: status %d: %s",
			q.AppID, q.Namespace, q.Endpoint, resp.StatusCode(), truncate(resp.Body()))
	}
}

// NotificationQuery names one long poll: the full vector of watched
// namespaces with their last acknowledged notification ids.
type NotificationQuery struct {
	Endpoint   string
	AppID      string
	Cluster    string
	DataCenter string
	ClientIP   string
	IDs        map[string]int64
}

// PollNotifications issues the long poll. The call blocks until the server
// answers: immediately when a watched namespace already has news, otherwise
// up to the server hold timeout.
//
// Returns the changed entries on 200 and ErrNotModified on 304 (the hold
// expired with nothing to report).
func (c *Client) PollNotifications(ctx context.Context, q NotificationQuery) ([]wire.Notification, error) {
	u := joinURL(q.Endpoint, "notifications", "v2")

	encoded, err := wire.EncodeNotifications(q.IDs)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"appId":         q.AppID,
		"cluster":       q.Cluster,
		"notifications": encoded,
	}
	if q.DataCenter != "" {
		params["dataCenter"] = q.DataCenter
	}
	if q.ClientIP != "" {
		params["ip"] = q.ClientIP
	}

	resp, err := c.poll.R().SetContext(ctx).SetQueryParams(params).Get(u)
	if err != nil {
		return nil, fmt.Errorf("poll notifications from %s: %w", q.Endpoint, err)
	}

	switch resp.StatusCode() {
	case 200:
		entries, err := wire.DecodeNotifications(resp.Body())
		if err != nil {
			return nil, fmt.Errorf("notification response from %s: %w", q.Endpoint, err)
		}
		return entries, nil
	case 304:
		return nil, ErrNotModified
	default:
		return nil, fmt.Errorf("poll notifications from %s: status %d: %s",
			q.Endpoint, resp.StatusCode(), truncate(resp.Body()))
	}
}

// GetServices asks the meta server for the current list of config-service
// instances.
func (c *Client) GetServices(ctx context.Context, metaURL, appID, clientIP string) ([]wire.ServiceInstance, error) {
	u := joinURL(metaURL, "services", "config")

	params := map[string]string{}
	if appID != "" {
		params["appId"] = appID
	}
	if clientIP != "" {
		params["ip"] = clientIP
	}

	resp, err := c.fetch.R().SetContext(ctx).SetQueryParams(params).Get(u)
	if err != nil {
		return nil, fmt.Errorf("get config services from %s: %w", metaURL, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("get config services from %s: status %d: %s",
			metaURL, resp.StatusCode(), truncate(resp.Body()))
	}

	services, err := wire.DecodeServices(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("service list from %s: %w", metaURL, err)
	}
	return services, nil
}

// joinURL joins a base endpoint with path segments, escaping each segment.
// The base may or may not carry a trailing slash.
func joinURL(base string, segments ...string) string {
	b := strings.TrimSuffix(base, "/")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, b)
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

// truncate bounds an error-path response body for log and error messages.
func truncate(body []byte) string {
	const maxLen = 256
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "..."
}
