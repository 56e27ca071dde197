package hub

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/giantswarm/confsync/internal/logging"
	"github.com/giantswarm/confsync/internal/wire"
)

// NewHandler builds the hub's HTTP surface:
//
//	GET  /notifications/v2  long poll (appId, cluster, notifications params)
//	POST /publish           admin publication (appId, cluster, namespace,
//	                        optional notificationId and messages params)
func NewHandler(h *Hub) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/notifications/v2", h.handlePoll).Methods(http.MethodGet)
	r.HandleFunc("/publish", h.handlePublish).Methods(http.MethodPost)
	return r
}

// handlePoll implements the long poll. Invalid vectors are rejected with 400;
// a poll with news answers 200 immediately; otherwise the watcher is parked
// until a publication, the hold expiry (304) or client disconnect.
func (h *Hub) handlePoll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := q.Get("appId")
	cluster := q.Get("cluster")
	if appID == "" || cluster == "" {
		http.Error(w, "appId and cluster are required", http.StatusBadRequest)
		return
	}

	entries, err := wire.DecodeNotifications([]byte(q.Get("notifications")))
	if err != nil {
		http.Error(w, "malformed notifications parameter", http.StatusBadRequest)
		return
	}

	newer, watcher, err := h.Poll(appID, cluster, entries)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if newer != nil {
		writeNotifications(w, newer)
		return
	}

	timer := time.NewTimer(h.holdTimeout)
	defer timer.Stop()
	select {
	case <-watcher.Done():
		if result, ok := watcher.Result(); ok {
			writeNotifications(w, result)
			return
		}
		w.WriteHeader(http.StatusNotModified)
	case <-timer.C:
		watcher.Cancel()
		h.metrics.holdExpiries.Inc()
		w.WriteHeader(http.StatusNotModified)
	case <-r.Context().Done():
		// Client went away; free the index entries and write nothing.
		watcher.Cancel()
	}
}

// handlePublish is the admin entry point for announcing a release. Without an
// explicit notificationId the hub assigns the next one.
func (h *Hub) handlePublish(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := q.Get("appId")
	namespace := q.Get("namespace")
	if appID == "" || namespace == "" {
		http.Error(w, "appId and namespace are required", http.StatusBadRequest)
		return
	}
	cluster := q.Get("cluster")
	if cluster == "" {
		cluster = "default"
	}

	var messages *wire.Messages
	if raw := q.Get("messages"); raw != "" {
		messages = &wire.Messages{}
		if err := wire.Unmarshal([]byte(raw), messages); err != nil {
			http.Error(w, "malformed messages parameter", http.StatusBadRequest)
			return
		}
	}

	var id int64
	if raw := q.Get("notificationId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "malformed notificationId parameter", http.StatusBadRequest)
			return
		}
		h.Publish(appID, cluster, namespace, parsed, messages)
		id = parsed
	} else {
		id = h.PublishNext(appID, cluster, namespace, messages)
	}

	writeNotifications(w, []wire.Notification{{NamespaceName: namespace, NotificationID: id}})
}

// writeNotifications renders a 200 response body.
func writeNotifications(w http.ResponseWriter, entries []wire.Notification) {
	body, err := wire.Marshal(entries)
	if err != nil {
		logging.Logger().Error("failed to serialize notification response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		logging.Logger().Warn("failed to write notification response", "error", err)
	}
}
