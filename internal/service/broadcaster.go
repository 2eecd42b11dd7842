package service

import "coherence/internal/model"

// StatusBroadcaster pushes status updates to subscribed clients (avoids
// an import cycle with the websocket hub)
type StatusBroadcaster interface {
	PublishStatus(status *model.ProcessingStatus)
}
