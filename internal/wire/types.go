package wire

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec used for all wire payloads. ConfigCompatibleWithStandardLibrary
// keeps map-key ordering and number handling identical to encoding/json while
// avoiding its reflection overhead on the hot notification path.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConfigPayload is the body of a 200 response from
// GET /configs/{appId}/{cluster}/{namespace}.
type ConfigPayload struct {
	AppID          string            `json:"appId"`
	Cluster        string            `json:"cluster"`
	NamespaceName  string            `json:"namespaceName"`
	Configurations map[string]string `json:"configurations"`
	ReleaseKey     string            `json:"releaseKey"`
}

// Notification is one entry of the notifications/v2 request vector and,
// with Messages populated, one entry of its 200 response body.
type Notification struct {
	NamespaceName  string    `json:"namespaceName"`
	NotificationID int64     `json:"notificationId"`
	Messages       *Messages `json:"messages,omitempty"`
}

// Messages carries the per-channel notification ids attached to a
// notification. Channel keys are opaque to the client; ids are monotonically
// increasing per channel.
type Messages struct {
	Details map[string]int64 `json:"details"`
}

// Clone returns a deep copy of m, or nil if m is nil. Fan-out hands each
// repository its own copy so a misbehaving listener cannot corrupt the
// notifier's bookkeeping.
func (m *Messages) Clone() *Messages {
	if m == nil {
		return nil
	}
	cp := &Messages{Details: make(map[string]int64, len(m.Details))}
	for k, v := range m.Details {
		cp.Details[k] = v
	}
	return cp
}

// Merge folds the ids of other into m, keeping the larger id per channel.
// Ids only move forward; a stale delivery can never regress a channel.
func (m *Messages) Merge(other *Messages) {
	if other == nil {
		return
	}
	if m.Details == nil {
		m.Details = make(map[string]int64, len(other.Details))
	}
	for k, v := range other.Details {
		if cur, ok := m.Details[k]; !ok || v > cur {
			m.Details[k] = v
		}
	}
}

// IsEmpty reports whether m carries no channel ids.
func (m *Messages) IsEmpty() bool {
	return m == nil || len(m.Details) == 0
}

// ServiceInstance is one entry of the meta server's GET /services/config
// response: a registered config-service instance.
type ServiceInstance struct {
	AppName     string `json:"appName"`
	InstanceID  string `json:"instanceId"`
	HomepageURL string `json:"homepageUrl"`
}

// EncodeNotifications renders the watched-namespace vector as the JSON value
// of the notifications query parameter. Entries are sorted by namespace name
// so the parameter is stable across calls, which keeps request logs and test
// expectations deterministic.
func EncodeNotifications(ids map[string]int64) (string, error) {
	entries := make([]Notification, 0, len(ids))
	for ns, id := range ids {
		entries = append(entries, Notification{NamespaceName: ns, NotificationID: id})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].NamespaceName < entries[j].NamespaceName
	})
	out, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode notifications: %w", err)
	}
	return string(out), nil
}

// DecodeNotifications parses a notifications/v2 body (request parameter or
// 200 response) into its entries.
func DecodeNotifications(body []byte) ([]Notification, error) {
	var entries []Notification
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return entries, nil
}

// EncodeMessages renders the last received messages bundle as the JSON value
// of the messages query parameter. Returns "" when there is nothing to send,
// so callers can omit the parameter entirely.
func EncodeMessages(m *Messages) (string, error) {
	if m.IsEmpty() {
		return "", nil
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}
	return string(out), nil
}

// DecodeConfig parses a configs endpoint 200 body.
func DecodeConfig(body []byte) (*ConfigPayload, error) {
	var p ConfigPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode config payload: %w", err)
	}
	return &p, nil
}

// DecodeServices parses a meta server GET /services/config body.
func DecodeServices(body []byte) ([]ServiceInstance, error) {
	var services []ServiceInstance
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("decode service list: %w", err)
	}
	return services, nil
}

// Marshal exposes the package codec for callers that need to serialize wire
// values directly (the hub response writer, the local snapshot store).
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal is the counterpart of Marshal.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
