package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// Identity headers set by the authenticating gateway in front of the API.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorEmail = "X-Actor-Email"
)

// requireActor reads the caller identity. It writes a 401 and returns false when absent.
// The administrator capability is never taken from the request.
func requireActor(c *gin.Context) (orders.Actor, bool) {
	id := c.GetHeader(HeaderActorID)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_actor"})
		return orders.Actor{}, false
	}
	return orders.Actor{
		ID:    id,
		Name:  c.GetHeader(HeaderActorName),
		Email: c.GetHeader(HeaderActorEmail),
	}, true
}
