package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/api"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/history"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/messaging"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/metrics"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/presence"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/protocol"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/ratelimit"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/relay"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/report"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/store"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/topic"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/ws"
)

// reportReviewThreshold is how many reports against one user within 24 hours
// trigger a review flag in the logs.
const reportReviewThreshold = 3

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	// --- MongoDB (message history, friendships, groups) ---
	mongoURI := "mongodb://localhost:27017"
	if v := os.Getenv("MONGO_URI"); v != "" {
		mongoURI = v
	}
	mongoDB := "sociamed"
	if v := os.Getenv("MONGO_DB"); v != "" {
		mongoDB = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Connect(ctx, mongoURI, mongoDB)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}

	// --- Redis (presence + rate limiting) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "relay-1"
	}

	presenceStore, err := presence.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	limiter := ratelimit.NewLimiter(presenceStore.Client())

	// --- NATS (inbound notification bridge) ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.Name = serverName
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- PostgreSQL (abuse reports, optional) ---
	var reportStore *report.Store
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		reportStore, err = report.Open(ctx, dsn)
		cancel()
		if err != nil {
			log.Fatalf("failed to connect to PostgreSQL: %v", err)
		}
	} else {
		log.Printf("POSTGRES_DSN not set, abuse reports disabled")
	}

	log.Printf("relay server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  mongo_uri:       %s", mongoURI)
	log.Printf("  mongo_db:        %s", mongoDB)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  server_name:     %s", serverName)

	registry := topic.NewRegistry()
	rel := relay.New(registry)

	dropInvalid := func(msgType, connID string) {
		metrics.EventsDropped.WithLabelValues("invalid").Inc()
		log.Printf("dropped invalid %s event conn=%s", msgType, connID)
	}

	allow := func(identifier string, rule ratelimit.Rule) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, _ := limiter.Allow(ctx, identifier, rule)
		if !ok {
			metrics.EventsDropped.WithLabelValues("rate_limited").Inc()
		}
		return ok
	}

	dispatcher := ws.NewEventDispatcher()

	// -----------------------------------------------------------------------
	// chat:join — subscribe to the direct-pair topic
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatJoin, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.ChatJoinMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeChatJoin, conn.ID())
			return
		}
		conn.SetUserID(m.UserID)
		registry.Join(conn, topic.Direct(m.UserID, m.FriendID))
		metrics.TopicsTotal.Set(float64(registry.TopicCount()))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := presenceStore.MarkOnline(ctx, m.UserID, conn.ID()); err != nil {
			log.Printf("presence mark online user=%s: %v", m.UserID, err)
		}
	})

	// -----------------------------------------------------------------------
	// group:join — subscribe to a group topic
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeGroupJoin, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.GroupJoinMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeGroupJoin, conn.ID())
			return
		}
		if m.UserID != "" {
			conn.SetUserID(m.UserID)
		}
		registry.Join(conn, topic.Group(m.GroupID))
		metrics.TopicsTotal.Set(float64(registry.TopicCount()))
	})

	// -----------------------------------------------------------------------
	// notification:join — subscribe to the per-user notification topic
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeNotificationJoin, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.NotificationJoinMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeNotificationJoin, conn.ID())
			return
		}
		conn.SetUserID(m.UserID)
		registry.Join(conn, topic.Notification(m.UserID))
		metrics.TopicsTotal.Set(float64(registry.TopicCount()))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := presenceStore.MarkOnline(ctx, m.UserID, conn.ID()); err != nil {
			log.Printf("presence mark online user=%s: %v", m.UserID, err)
		}
	})

	// -----------------------------------------------------------------------
	// chat:message — relay a direct message to both participants
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatMessage, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.ChatMessageMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeChatMessage, conn.ID())
			return
		}
		if !allow(m.FromID, ratelimit.RuleMessage) {
			return
		}
		rel.Publish(topic.Direct(m.FromID, m.ToID), raw)
	})

	// -----------------------------------------------------------------------
	// chat:seen — relay a read receipt
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatSeen, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.ChatSeenMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeChatSeen, conn.ID())
			return
		}
		rel.Publish(topic.Direct(m.FromID, m.ToID), raw)
	})

	// -----------------------------------------------------------------------
	// group:message — relay to every member of the group topic
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeGroupMessage, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.GroupMessageMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeGroupMessage, conn.ID())
			return
		}
		if !allow(m.FromID, ratelimit.RuleMessage) {
			return
		}
		rel.Publish(topic.Group(m.GroupID), raw)
	})

	// -----------------------------------------------------------------------
	// call:* — relay signaling to the other party, never back to the sender
	// -----------------------------------------------------------------------
	callSignal := func(msgType string) ws.EventHandler {
		return func(conn *ws.Connection, msg interface{}, raw []byte) {
			m, ok := msg.(protocol.CallSignalMsg)
			if !ok || !m.Valid() {
				dropInvalid(msgType, conn.ID())
				return
			}
			if !allow(m.FromID, ratelimit.RuleSignal) {
				return
			}
			rel.PublishExcept(topic.Direct(m.FromID, m.ToID), conn, raw)
		}
	}
	for _, t := range []string{
		protocol.TypeCallOffer,
		protocol.TypeCallAnswer,
		protocol.TypeCallICECandidate,
		protocol.TypeCallEnd,
		protocol.TypeCallReject,
	} {
		dispatcher.Register(t, callSignal(t))
	}

	// -----------------------------------------------------------------------
	// chat:report — persist for moderator review, no fan-out
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatReport, func(conn *ws.Connection, msg interface{}, raw []byte) {
		m, ok := msg.(protocol.ChatReportMsg)
		if !ok || !m.Valid() {
			dropInvalid(protocol.TypeChatReport, conn.ID())
			return
		}
		if reportStore == nil {
			log.Printf("report from user=%s dropped (reports disabled)", m.ReporterID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := reportStore.Create(ctx, &report.Report{
			ReporterID:      m.ReporterID,
			ReportedID:      m.ReportedID,
			ConversationKey: m.ConversationKey,
			Reason:          m.Reason,
		})
		if err != nil {
			log.Printf("report from user=%s: %v", m.ReporterID, err)
			return
		}
		log.Printf("report filed reporter=%s reported=%s reason=%s", m.ReporterID, m.ReportedID, m.Reason)

		if n, err := reportStore.CountRecent(ctx, m.ReportedID, 24*time.Hour); err == nil && n >= reportReviewThreshold {
			log.Printf("user=%s has %d reports in 24h, flagging for review", m.ReportedID, n)
		}
	})

	server := ws.NewServer(config, dispatcher.Dispatch)

	// Throttle upgrade attempts per client IP before any socket state exists.
	server.SetConnectGate(func(remoteIP string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, _ := limiter.Allow(ctx, remoteIP, ratelimit.RuleConnect)
		return ok
	})

	// Tear down topic memberships and presence when a connection goes away.
	server.SetOnDisconnect(func(conn *ws.Connection) {
		registry.LeaveAll(conn)
		metrics.TopicsTotal.Set(float64(registry.TopicCount()))

		if uid := conn.UserID(); uid != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := presenceStore.MarkOffline(ctx, uid, conn.ID()); err != nil {
				log.Printf("presence mark offline user=%s: %v", uid, err)
			}
		}
	})

	// Bridge friend request notifications from the REST collaborator onto each
	// target user's notification topic.
	err = natsClient.SubscribeFriendRequests(func(userID string, data []byte) {
		var m protocol.FriendRequestMsg
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[friend-req] unmarshal for user=%s: %v", userID, err)
			return
		}
		out, err := protocol.NewServerMessage(protocol.TypeFriendRequest, m)
		if err != nil {
			log.Printf("[friend-req] encode for user=%s: %v", userID, err)
			return
		}
		rel.Publish(topic.Notification(userID), out)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to friend requests: %v", err)
	}

	// History API and metrics share the WebSocket listener.
	resolver := history.NewResolver(st.Legacy, st.Messages)
	handlers := api.NewHandler(resolver, st)
	server.Handle("/history", http.HandlerFunc(handlers.History))
	server.Handle("/messages", http.HandlerFunc(handlers.SendMessage))
	server.Handle("/messages/", http.HandlerFunc(handlers.DeleteMessage))
	server.Handle("/metrics", metrics.Handler())

	// Heartbeat evicts dead connections and keeps presence fresh for the rest.
	ws.StartHeartbeat(server, ws.DefaultHeartbeatConfig(), func(conn *ws.Connection) {
		if uid := conn.UserID(); uid != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := presenceStore.Refresh(ctx, uid); err != nil {
				log.Printf("presence refresh user=%s: %v", uid, err)
			}
		}
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := presenceStore.Close(); err != nil {
			log.Printf("presence store close error: %v", err)
		}
		if reportStore != nil {
			if err := reportStore.Close(); err != nil {
				log.Printf("report store close error: %v", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			log.Printf("store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
