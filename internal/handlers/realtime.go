package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

// StreamServer upgrades a request into a search stream.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request)
}

// SearchStreamHandler hands WebSocket upgrades to the search stream hub.
type SearchStreamHandler struct {
	streams StreamServer
}

// NewSearchStreamHandler constructs a SearchStreamHandler.
func NewSearchStreamHandler(streams StreamServer) *SearchStreamHandler {
	return &SearchStreamHandler{streams: streams}
}

// Stream upgrades the request. Plain HTTP requests are rejected.
func (h *SearchStreamHandler) Stream(c *gin.Context) {
	if h.streams == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	if !c.IsWebsocket() {
		response.Error(c, errors.ErrBadRequest.WithMessage("websocket upgrade required"))
		return
	}
	h.streams.Serve(c.Writer, c.Request)
}
