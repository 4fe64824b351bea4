package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	models "OddsPulse/internal/domain/models"
	"OddsPulse/internal/service/metrics"
	"OddsPulse/internal/usecase"
	xhttp "OddsPulse/pkg/http"
	xlogger "OddsPulse/pkg/logger"
)

// ScoreStreamHandler serves /api/ws/score: clients send ScoreFrames and receive ScoreReplies
// in the same order.
type ScoreStreamHandler struct {
	logger       *xlogger.Logger
	recommend    *usecase.RecommendUsecase
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewScoreStreamHandler(logger *xlogger.Logger, recommend *usecase.RecommendUsecase, pingInterval time.Duration) *ScoreStreamHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &ScoreStreamHandler{
		logger:    logger,
		recommend: recommend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		readTimeout:  2 * pingInterval,
		writeTimeout: 10 * time.Second,
	}
}

func (h *ScoreStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ws/score", h.Serve)
}

func (h *ScoreStreamHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		h.logger.Debug("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	metrics.WSSessions.Inc()
	defer metrics.WSSessions.Dec()

	s := &scoreSession{h: h, conn: conn}
	s.run(c.Request().Context())
	return nil
}

type scoreSession struct {
	h    *ScoreStreamHandler
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (s *scoreSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.h.readTimeout))
	})

	// ping loop
	go func() {
		ticker := time.NewTicker(s.h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.wmu.Lock()
				err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.h.writeTimeout))
				s.wmu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// read loop
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.h.logger.Debug("ws read error", xlogger.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.h.readTimeout))

		reply := s.handle(ctx, b)
		if err := s.write(reply); err != nil {
			s.h.logger.Debug("ws write error", xlogger.Error(err))
			return
		}
	}
}

func (s *scoreSession) handle(ctx context.Context, b []byte) models.ScoreReply {
	var frame models.ScoreFrame
	if err := json.Unmarshal(b, &frame); err != nil {
		return models.ScoreReply{Error: []xhttp.ValidationError{{Code: "ERR_BIND", Message: "frame is not valid JSON"}}}
	}
	if verr := xhttp.ValidateStruct(ctx, &frame); verr != nil {
		return models.ScoreReply{ID: frame.ID, Error: verr}
	}

	rec, err := s.h.recommend.Recommend(ctx, models.HandicapType(frame.Type), frame.Snapshot())
	if err != nil {
		appErr := toAppError(err)
		return models.ScoreReply{ID: frame.ID, Error: []*xhttp.AppError{appErr}}
	}
	return models.ScoreReply{ID: frame.ID, Result: &rec}
}

func (s *scoreSession) write(v interface{}) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.writeTimeout))
	return s.conn.WriteJSON(v)
}
