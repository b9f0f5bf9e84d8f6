package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const logStreamInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type logMessage struct {
	Type     string    `json:"type"` // "log" or "status"
	Line     string    `json:"line,omitempty"`
	Status   JobStatus `json:"status,omitempty"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

// handleLogStream pushes a job's log lines over a websocket as they appear,
// then a final status message once the job stops running.
func (app *App) handleLogStream(c *gin.Context) {
	job := app.jobParam(c)
	if job == nil {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws upgrade error", "err", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(logStreamInterval)
	defer ticker.Stop()

	sent := 0
	for {
		snap := job.Snapshot()
		for ; sent < len(snap.Logs); sent++ {
			if err := conn.WriteJSON(logMessage{Type: "log", Line: snap.Logs[sent], Progress: snap.Progress}); err != nil {
				return
			}
		}
		if snap.Status != StatusRunning {
			_ = conn.WriteJSON(logMessage{Type: "status", Status: snap.Status, Progress: snap.Progress, Error: snap.Error})
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

// readPump drains client frames so close messages are noticed.
func readPump(c *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
