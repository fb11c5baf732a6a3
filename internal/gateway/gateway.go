package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"playchess/internal/accounts"
	"playchess/internal/auth"
	"playchess/internal/live"
	"playchess/internal/match"
	"playchess/internal/obslog"
	"playchess/internal/rules"
	"playchess/internal/timecontrol"
	"playchess/pkg/gamedto"
)

const profileTimeout = 5 * time.Second

// Gateway terminates websocket connections: it authenticates the
// handshake, decodes event envelopes and routes them to the matchmaking
// pool and the live-session core.
type Gateway struct {
	verifier *auth.Verifier
	pool     *match.Pool
	sessions *live.Manager
	hub      *Hub
	profiles *accounts.Client

	origins []string
}

type Option func(*Gateway)

// WithAccounts wires the account-service client used to resolve usernames
// and ratings at enqueue time. Without it every player enters the pool at
// the default rating.
func WithAccounts(c *accounts.Client) Option {
	return func(g *Gateway) { g.profiles = c }
}

// WithAllowedOrigins restricts the handshake origin check.
func WithAllowedOrigins(patterns []string) Option {
	return func(g *Gateway) { g.origins = patterns }
}

func New(verifier *auth.Verifier, pool *match.Pool, sessions *live.Manager, hub *Hub, opts ...Option) *Gateway {
	g := &Gateway{
		verifier: verifier,
		pool:     pool,
		sessions: sessions,
		hub:      hub,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnPair starts a session for a matched pair. Registered as the pool's
// pairing callback; colors are already assigned when it fires.
func (g *Gateway) OnPair(bucket string, white, black match.Entry) {
	tc := timecontrol.Parse(bucket)
	s, err := g.sessions.StartMatch(toParticipant(white, gamedto.White), toParticipant(black, gamedto.Black), tc)
	if err != nil {
		obslog.L().Warn("session start failed",
			zap.String("bucket", bucket),
			zap.String("white", white.UserID),
			zap.String("black", black.UserID),
			zap.Error(err))
		g.requeueSurvivors(bucket, white, black)
		return
	}
	if c, ok := white.Conn.(*Conn); ok {
		g.hub.Join(s.ID, c)
	}
	if c, ok := black.Conn.(*Conn); ok {
		g.hub.Join(s.ID, c)
	}
	g.sessions.Begin(s)
}

// requeueSurvivors puts players whose connection is still up back into the
// pool after an aborted setup.
func (g *Gateway) requeueSurvivors(bucket string, entries ...match.Entry) {
	for _, e := range entries {
		if e.Conn == nil || e.Conn.Closed() {
			continue
		}
		e.EnqueuedAt = time.Now()
		if err := g.pool.Enqueue(bucket, e); err != nil {
			obslog.L().Warn("requeue failed", zap.String("userId", e.UserID), zap.Error(err))
		}
	}
}

func toParticipant(e match.Entry, color gamedto.Color) live.Participant {
	p := live.Participant{
		UserID:   e.UserID,
		Username: e.Username,
		Color:    color,
		Rating:   e.Rating,
	}
	if c, ok := e.Conn.(*Conn); ok {
		p.Conn = c
	}
	return p
}

// ServeHTTP is the websocket endpoint. Authentication happens before the
// upgrade so unauthenticated clients get a plain 401.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.verifier.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  g.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Debug("websocket accept failed", zap.Error(err))
		return
	}

	c := newConn(ws, userID)
	obslog.L().Info("client connected", zap.String("userId", userID))
	g.readLoop(r.Context(), c)
}

// bearerToken pulls the identity token from the query string or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}

func (g *Gateway) readLoop(ctx context.Context, c *Conn) {
	defer func() {
		g.pool.Dequeue(c.UserID())
		g.hub.Drop(c)
		c.close(websocket.StatusNormalClosure, "bye")
		obslog.L().Info("client disconnected", zap.String("userId", c.UserID()))
	}()

	for {
		var env gamedto.Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			return
		}
		g.dispatch(c, env)
	}
}

func (g *Gateway) dispatch(c *Conn, env gamedto.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("event handler panic",
				zap.String("event", env.Event),
				zap.String("userId", c.UserID()),
				zap.Any("panic", r))
			_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: "internal error"})
		}
	}()

	switch env.Event {
	case gamedto.EventJoinPool:
		g.handleJoinPool(c, env.Data)
	case gamedto.EventLeavePool:
		g.pool.Dequeue(c.UserID())
	case gamedto.EventJoinGameRoom:
		g.handleJoinRoom(c, env.Data)
	case gamedto.EventLeaveGameRoom:
		var ref gamedto.GameRef
		if decode(c, env.Data, &ref) {
			g.hub.Leave(ref.GameID, c)
		}
	case gamedto.EventMove:
		g.handleMove(c, env.Data)
	case gamedto.EventResign:
		var ref gamedto.GameRef
		if decode(c, env.Data, &ref) {
			g.finishGameAction(c, ref.GameID, g.sessions.Resign(ref.GameID, c.UserID()))
		}
	case gamedto.EventOfferDraw:
		var ref gamedto.GameRef
		if decode(c, env.Data, &ref) {
			g.sendGameError(c, g.sessions.OfferDraw(ref.GameID, c.UserID()))
		}
	case gamedto.EventAcceptDraw:
		var ref gamedto.GameRef
		if decode(c, env.Data, &ref) {
			g.finishGameAction(c, ref.GameID, g.sessions.AcceptDraw(ref.GameID, c.UserID()))
		}
	default:
		_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: "unknown event: " + env.Event})
	}
}

func (g *Gateway) handleJoinPool(c *Conn, raw json.RawMessage) {
	var req gamedto.JoinPool
	if !decode(c, raw, &req) {
		return
	}
	info := timecontrol.Parse(req.TimeControl)

	username := c.UserID()
	playerRating := accounts.DefaultRating
	if g.profiles != nil {
		ctx, cancel := context.WithTimeout(context.Background(), profileTimeout)
		p, err := g.profiles.Profile(ctx, c.UserID())
		cancel()
		if err != nil {
			obslog.L().Warn("profile fetch failed, using defaults",
				zap.String("userId", c.UserID()), zap.Error(err))
		} else {
			if p.Username != "" {
				username = p.Username
			}
			playerRating = p.RatingFor(info.RatingKey())
		}
	}

	entry := match.Entry{
		UserID:     c.UserID(),
		Username:   username,
		Rating:     playerRating,
		EnqueuedAt: time.Now(),
		Conn:       c,
	}
	if err := g.pool.Enqueue(info.Canonical, entry); err != nil {
		_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: err.Error()})
		return
	}
	_ = c.Send(gamedto.EventPoolJoined, gamedto.PoolJoined{
		TimeControl: info.Canonical,
		Category:    string(info.Category),
		Rating:      playerRating,
	})
}

func (g *Gateway) handleJoinRoom(c *Conn, raw json.RawMessage) {
	var ref gamedto.GameRef
	if !decode(c, raw, &ref) {
		return
	}
	st := g.sessions.LiveState(ref.GameID)
	if st == nil {
		_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: "game not found"})
		return
	}
	g.hub.Join(ref.GameID, c)
	// resync the late joiner against the authoritative state
	_ = c.Send(gamedto.EventGameUpdate, st)
}

func (g *Gateway) handleMove(c *Conn, raw json.RawMessage) {
	var req gamedto.MoveSubmit
	if !decode(c, raw, &req) {
		return
	}
	err := g.sessions.SubmitMove(req.GameID, c.UserID(), req.Move)
	switch {
	case err == nil:
		g.closeRoomIfSettled(req.GameID)
	case errors.Is(err, rules.ErrIllegalMove),
		errors.Is(err, live.ErrNotYourTurn),
		errors.Is(err, live.ErrSessionNotActive),
		errors.Is(err, live.ErrSessionNotFound),
		errors.Is(err, live.ErrNotParticipant):
		_ = c.Send(gamedto.EventInvalidMove, gamedto.InvalidMove{GameID: req.GameID, Message: err.Error()})
	default:
		g.sendGameError(c, err)
	}
}

// finishGameAction reports an action's error, if any, and otherwise frees
// the room once the session has been settled.
func (g *Gateway) finishGameAction(c *Conn, gameID string, err error) {
	if err != nil {
		g.sendGameError(c, err)
		return
	}
	g.closeRoomIfSettled(gameID)
}

func (g *Gateway) closeRoomIfSettled(gameID string) {
	if g.sessions.LiveState(gameID) == nil {
		g.hub.CloseRoom(gameID)
	}
}

func (g *Gateway) sendGameError(c *Conn, err error) {
	if err == nil {
		return
	}
	_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: err.Error()})
}

// decode unmarshals an event payload, reporting malformed data back to the
// client.
func decode(c *Conn, raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: "missing event data"})
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		_ = c.Send(gamedto.EventError, gamedto.ErrorEvent{Message: "malformed event data"})
		return false
	}
	return true
}
