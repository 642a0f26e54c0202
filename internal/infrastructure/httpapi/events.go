package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/pubsub"
)

const keepAliveInterval = 25 * time.Second

// streamEvents relays sync notifications as server-sent events.
// Query parameters tenant and kind (comma separated) narrow the stream.
func (a *api) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	filter := &pubsub.Filter{TenantID: r.URL.Query().Get("tenant")}
	for _, k := range strings.Split(r.URL.Query().Get("kind"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			filter.Kinds = append(filter.Kinds, domain.NotificationKind(k))
		}
	}

	sub := a.deps.Events.Subscribe(r.Context(), filter)
	defer a.deps.Events.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-sub.Notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				a.logger.Error().Err(err).Str("kind", string(n.Kind)).Msg("Failed to encode notification")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, data)
			flusher.Flush()
		}
	}
}
