package server

import (
    "fmt"
    "io"
    "net"
    "net/http"
    "sync"

    "github.com/google/uuid"
    "github.com/gorilla/mux"
    "github.com/gorilla/websocket"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/PelionIoT/dbsync/cache"
    "github.com/PelionIoT/dbsync/session"
    "github.com/PelionIoT/dbsync/transport"

    . "github.com/PelionIoT/dbsync/logging"
)

type ServerConfig struct {
    Host string
    Port int
    Databases *cache.Cache
    SessionFactory session.Factory
}

type connectionEntry struct {
    connection *Connection
    clientTransport transport.Transport
}

// Server accepts client connections at /sync and hands each one to its own
// Connection. Any failure reported by a connection's dispatch, and any
// transport error or close, tears that one connection down.
type Server struct {
    httpServer *http.Server
    listener net.Listener
    host string
    port int
    databases *cache.Cache
    sessionFactory session.Factory
    upgrader websocket.Upgrader
    connectionsLock sync.Mutex
    connections map[string]*connectionEntry
}

func NewServer(serverConfig ServerConfig) *Server {
    upgrader := websocket.Upgrader{
        ReadBufferSize:  1024,
        WriteBufferSize: 1024,
    }

    return &Server{
        host: serverConfig.Host,
        port: serverConfig.Port,
        databases: serverConfig.Databases,
        sessionFactory: serverConfig.SessionFactory,
        upgrader: upgrader,
        connections: make(map[string]*connectionEntry),
    }
}

func (server *Server) Port() int {
    return server.port
}

func (server *Server) Start() error {
    r := mux.NewRouter()

    r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf8")
        w.WriteHeader(http.StatusOK)
        io.WriteString(w, "{}\n")
    }).Methods("GET")

    r.Handle("/metrics", promhttp.Handler()).Methods("GET")

    r.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
        connection, err := server.upgrader.Upgrade(w, r, nil)

        if err != nil {
            Log.Errorf("Unable to upgrade sync connection: %v", err)

            return
        }

        server.accept(connection)
    }).Methods("GET")

    server.httpServer = &http.Server{
        Handler: r,
    }

    listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", server.host, server.port))

    if err != nil {
        Log.Errorf("Unable to listen on port %d: %v", server.port, err)

        return err
    }

    server.listener = listener

    Log.Infof("Listening external on port %d", server.port)

    err = server.httpServer.Serve(listener)

    return err
}

func (server *Server) Stop() error {
    if server.listener != nil {
        server.listener.Close()
    }

    server.connectionsLock.Lock()
    entries := make([]*connectionEntry, 0, len(server.connections))

    for _, entry := range server.connections {
        entries = append(entries, entry)
    }

    server.connections = make(map[string]*connectionEntry)
    prometheusConnectionsGauge.Set(0)
    server.connectionsLock.Unlock()

    for _, entry := range entries {
        entry.connection.Close()
        entry.clientTransport.Close()
    }

    return nil
}

func (server *Server) accept(wsConnection *websocket.Conn) {
    id := uuid.New().String()
    clientTransport := transport.NewWSTransport(wsConnection)
    connection := NewConnection(id, server.databases, clientTransport, server.sessionFactory)

    server.connectionsLock.Lock()
    server.connections[id] = &connectionEntry{ connection: connection, clientTransport: clientTransport }
    prometheusConnectionsGauge.Inc()
    server.connectionsLock.Unlock()

    Log.Infof("Accepted sync connection %s from %s", id, wsConnection.RemoteAddr())

    clientTransport.OnMessage(func(raw []byte) {
        if err := connection.HandleMessage(raw); err != nil {
            Log.Errorf("Closing connection %s: %v", id, err)

            prometheusViolationsCounter.Inc()

            go server.release(id)
        }
    })

    clientTransport.OnError(func(err error) {
        Log.Errorf("Transport error on connection %s: %v", id, err)

        go server.release(id)
    })

    clientTransport.OnClose(func() {
        Log.Infof("Connection %s closed by client", id)

        go server.release(id)
    })

    clientTransport.Start()
}

func (server *Server) release(id string) {
    server.connectionsLock.Lock()
    entry, ok := server.connections[id]

    if !ok {
        server.connectionsLock.Unlock()

        return
    }

    delete(server.connections, id)
    prometheusConnectionsGauge.Dec()
    server.connectionsLock.Unlock()

    entry.connection.Close()
    entry.clientTransport.Close()

    Log.Infof("Disconnected from connection %s", id)
}
