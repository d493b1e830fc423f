package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"persona/internal/domain"
	"persona/internal/locale"
	"persona/internal/metrics"
	"persona/internal/middleware"
	"persona/internal/persona"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
)

type socketRequest struct {
	UID      string `json:"uid"`
	Image    string `json:"image"`
	Filename string `json:"filename"`
	Gender   string `json:"gender"`
	Emotion  string `json:"emotion"`
}

type socketReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Emotion string `json:"emotion,omitempty"`
	Images  any    `json:"images,omitempty"`
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 || set["*"] {
			return true
		}
		return set[origin]
	}
}

// EchoSocket replies to every text message with an acknowledgment. Clients
// use it to check the live connection.
func (a *App) EchoSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ws: echo upgrade failed")
		return
	}
	defer conn.Close()
	loc := middleware.LocaleFromContext(r.Context())
	conn.SetReadLimit(maxMessageSize)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Debug().Err(err).Msg("ws: echo closed")
			}
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(locale.T(loc, locale.EchoReply, string(msg)))); err != nil {
			return
		}
	}
}

// PersonaSocket reads one generation request, streams a progress message per
// emotion and always finishes with a terminal success/error message before
// closing. The batch is cancelled if the peer goes away.
func (a *App) PersonaSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ws: persona upgrade failed")
		return
	}
	metrics.SocketSessions.Inc()
	defer metrics.SocketSessions.Dec()

	loc := middleware.LocaleFromContext(r.Context())
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	reply := socketReply{Status: "error", Message: locale.T(loc, locale.ServerError)}
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error().Interface("panic", p).Msg("ws: persona handler panicked")
			reply = socketReply{Status: "error", Message: locale.T(loc, locale.ServerError)}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			a.logger.Debug().Err(err).Msg("ws: terminal message not delivered")
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	var req socketRequest
	if err := conn.ReadJSON(&req); err != nil {
		a.logger.Debug().Err(err).Msg("ws: bad request message")
		reply.Message = locale.T(loc, locale.InvalidMessage)
		return
	}

	go a.watchPeer(ctx, cancel, conn)

	img, err := a.socketImage(req)
	if err != nil {
		reply.Message = locale.T(loc, locale.InvalidImage)
		return
	}

	if strings.TrimSpace(req.Emotion) != "" {
		reply = a.socketRegenerate(ctx, loc, req, img)
		return
	}
	reply = a.socketGenerate(ctx, loc, conn, req, img)
}

func (a *App) socketImage(req socketRequest) (domain.InputImage, error) {
	if strings.TrimSpace(req.Image) != "" {
		return decodeImage(req.Image, req.Filename)
	}
	return a.defaults.Image(req.Gender)
}

func (a *App) socketGenerate(ctx context.Context, loc string, conn *websocket.Conn, req socketRequest, img domain.InputImage) socketReply {
	observe := func(p persona.Progress) {
		key := locale.EmotionDone
		if !p.Result.Succeeded() {
			key = locale.EmotionFailed
		}
		msg := socketReply{
			Status:  "progress",
			Message: locale.T(loc, key, p.Result.Emotion),
			Emotion: string(p.Result.Emotion),
			Images:  map[domain.Emotion]domain.GenerationResult{p.Result.Emotion: p.Result},
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			a.logger.Debug().Err(err).Msg("ws: progress not delivered")
		}
	}

	res, err := a.personas.Generate(ctx, req.UID, img, observe)
	if err != nil {
		a.logger.Error().Err(err).Str("uid", req.UID).Msg("ws: persona generation failed")
		return socketReply{Status: "error", Message: locale.T(loc, locale.ServerError), Images: nilIfEmpty(res.Images)}
	}
	switch res.Status {
	case domain.StatusComplete:
		return socketReply{Status: "success", Message: locale.T(loc, locale.BatchComplete), Images: res.Images}
	case domain.StatusPartial:
		return socketReply{Status: "success", Message: locale.T(loc, locale.BatchPartial, len(res.URLs()), len(res.Images)), Images: res.Images}
	default:
		return socketReply{Status: "error", Message: locale.T(loc, locale.BatchFailed), Images: res.Images}
	}
}

func (a *App) socketRegenerate(ctx context.Context, loc string, req socketRequest, img domain.InputImage) socketReply {
	emotion, err := domain.ParseEmotion(req.Emotion)
	if err != nil {
		return socketReply{Status: "error", Message: locale.T(loc, locale.UnknownEmotion, req.Emotion)}
	}
	res, err := a.personas.Regenerate(ctx, req.UID, emotion, img)
	if err != nil {
		a.logger.Error().Err(err).Str("uid", req.UID).Str("emotion", string(emotion)).Msg("ws: regenerate failed")
		return socketReply{Status: "error", Message: locale.T(loc, locale.ServerError), Emotion: string(emotion)}
	}
	images := map[domain.Emotion]domain.GenerationResult{emotion: res}
	if !res.Succeeded() {
		return socketReply{Status: "error", Message: locale.T(loc, locale.RegenerateFailed, emotion), Emotion: string(emotion), Images: images}
	}
	return socketReply{Status: "success", Message: locale.T(loc, locale.RegenerateDone, emotion), Emotion: string(emotion), Images: images}
}

// watchPeer keeps the connection alive with pings and cancels the request
// once the peer disconnects or stops answering.
func (a *App) watchPeer(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			a.logger.Info().Err(err).Msg("ws: peer went away; cancelling")
			cancel()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

func nilIfEmpty(images map[domain.Emotion]domain.GenerationResult) any {
	if len(images) == 0 {
		return nil
	}
	return images
}
