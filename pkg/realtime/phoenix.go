package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Phoenix channel protocol events used by Supabase Realtime.
const (
	phxJoin         = "phx_join"
	phxReply        = "phx_reply"
	phxError        = "phx_error"
	phxClose        = "phx_close"
	phxHeartbeat    = "heartbeat"
	postgresChanges = "postgres_changes"
	phoenixTopic    = "phoenix"
)

// DefaultHeartbeat is the Supabase client heartbeat interval.
const DefaultHeartbeat = 25 * time.Second

// PhoenixConfig configures a Supabase Realtime connection.
type PhoenixConfig struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL       string
	APIKey    string
	Schema    string
	Tables    []string
	Heartbeat time.Duration
}

type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type phoenixReply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changeRecord struct {
	Table     string         `json:"table"`
	Type      string         `json:"type"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"old_record"`
}

// changePayload covers both the current postgres_changes envelope and the
// legacy top-level record form.
type changePayload struct {
	Data *changeRecord `json:"data"`
	changeRecord
}

// PhoenixSource subscribes to postgres_changes over the Supabase Realtime
// websocket.
type PhoenixSource struct {
	cfg    PhoenixConfig
	logger *zap.Logger
	ref    atomic.Int64
}

// NewPhoenixSource creates a Supabase Realtime source.
func NewPhoenixSource(cfg PhoenixConfig, logger *zap.Logger) *PhoenixSource {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = []string{TableProfiles, TableSocialProfiles, TableConnections}
	}
	return &PhoenixSource{cfg: cfg, logger: logger.Named("phoenix")}
}

// WebsocketURL derives the realtime endpoint from a project URL.
func WebsocketURL(projectURL, apiKey string) (string, error) {
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse realtime URL: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported realtime URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *PhoenixSource) nextRef() string {
	return strconv.FormatInt(s.ref.Add(1), 10)
}

func (s *PhoenixSource) topic(table string) string {
	return "realtime:" + s.cfg.Schema + ":" + table
}

func (s *PhoenixSource) Run(ctx context.Context, publish func(Event)) error {
	wsURL, err := WebsocketURL(s.cfg.URL, s.cfg.APIKey)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to realtime: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")
	conn.SetReadLimit(1 << 20)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(map[string]string, len(s.cfg.Tables))
	for _, table := range s.cfg.Tables {
		ref := s.nextRef()
		pending[ref] = table
		join := map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]string{
					{"event": "*", "schema": s.cfg.Schema, "table": table},
				},
			},
			"access_token": s.cfg.APIKey,
		}
		if err := s.send(ctx, conn, s.topic(table), phxJoin, join, ref); err != nil {
			return fmt.Errorf("failed to join %s: %w", table, err)
		}
	}

	heartbeatErr := make(chan error, 1)
	go func() {
		t := time.NewTicker(s.cfg.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.send(ctx, conn, phoenixTopic, phxHeartbeat, map[string]any{}, s.nextRef()); err != nil {
					heartbeatErr <- fmt.Errorf("failed to send heartbeat: %w", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case hbErr := <-heartbeatErr:
				return hbErr
			default:
			}
			return fmt.Errorf("realtime read error: %w", err)
		}

		var msg phoenixMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("Failed to parse realtime message", zap.Error(err))
			continue
		}

		switch msg.Event {
		case phxReply:
			if msg.Ref == nil {
				continue
			}
			table, ok := pending[*msg.Ref]
			if !ok {
				continue
			}
			delete(pending, *msg.Ref)
			var reply phoenixReply
			if err := json.Unmarshal(msg.Payload, &reply); err != nil {
				return fmt.Errorf("failed to parse join reply for %s: %w", table, err)
			}
			if reply.Status != "ok" {
				return fmt.Errorf("join %s rejected: %s %s", table, reply.Status, string(reply.Response))
			}
			s.logger.Info("Subscribed to table changes", zap.String("table", table))
			if len(pending) == 0 {
				publish(Event{Op: OpResync})
			}
		case postgresChanges, string(OpInsert), string(OpUpdate), string(OpDelete):
			e, err := parseChange(msg.Payload)
			if err != nil {
				s.logger.Warn("Ignoring malformed change message",
					zap.String("topic", msg.Topic),
					zap.Error(err),
				)
				continue
			}
			publish(e)
		case phxError, phxClose:
			return fmt.Errorf("channel %s closed by server: %s", msg.Topic, msg.Event)
		default:
			// presence_state, system and other channel traffic
		}
	}
}

func (s *PhoenixSource) send(ctx context.Context, conn *websocket.Conn, topic, event string, payload any, ref string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	data, err := json.Marshal(phoenixMessage{Topic: topic, Event: event, Payload: raw, Ref: &ref})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func parseChange(payload json.RawMessage) (Event, error) {
	var p changePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Event{}, fmt.Errorf("failed to decode change: %w", err)
	}
	rec := p.changeRecord
	if p.Data != nil {
		rec = *p.Data
	}
	if rec.Table == "" || rec.Type == "" {
		return Event{}, fmt.Errorf("change missing table or type")
	}

	row := rec.Record
	if Op(rec.Type) == OpDelete || len(row) == 0 {
		row = rec.OldRecord
	}
	id, _ := row["id"].(string)
	return Event{
		Table:      rec.Table,
		Op:         Op(rec.Type),
		RowID:      id,
		ProfileID:  profileIDFor(rec.Table, row),
		ReceivedAt: time.Now(),
	}, nil
}

var _ Source = (*PhoenixSource)(nil)
