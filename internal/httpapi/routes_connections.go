package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorphGrid/Framework/internal/transport/session"
)

type connectionView struct {
	ID             string    `json:"id"`
	RemoteAddr     string    `json:"remote_addr"`
	ConnectedSince time.Time `json:"connected_since"`
}

func (a *API) handleListConnections(c *gin.Context) {
	snapshot := a.Transport.Snapshot()
	out := make([]connectionView, 0, len(snapshot))
	for _, conn := range snapshot {
		out = append(out, connectionView{
			ID:             conn.ID.String(),
			RemoteAddr:     conn.RemoteAddr().String(),
			ConnectedSince: conn.ConnectedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

func (a *API) handleDeleteConnection(c *gin.Context) {
	id, err := session.ParseConnectionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.Transport.Contains(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	a.Transport.CloseConnection(id)
	c.Status(http.StatusNoContent)
}
