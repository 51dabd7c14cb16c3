package server

import (
    "sync"

    "github.com/PelionIoT/dbsync/cache"
    "github.com/PelionIoT/dbsync/session"
    "github.com/PelionIoT/dbsync/transport"

    . "github.com/PelionIoT/dbsync/logging"
    . "github.com/PelionIoT/dbsync/protocol"
)

// Connection translates the tagged message stream from one client into
// calls against a single sync session. The protocol state machine is
// deliberately small: a connection is unannounced until the first
// AnnouncePresence creates its session, active until it is closed, and
// closed forever after that. A session is created at most once per
// connection.
type Connection struct {
    id string
    databases *cache.Cache
    clientTransport transport.Transport
    sessionFactory session.Factory
    room string
    session session.Session
    csLock sync.Mutex
    closed bool
}

func NewConnection(id string, databases *cache.Cache, clientTransport transport.Transport, sessionFactory session.Factory) *Connection {
    return &Connection{
        id: id,
        databases: databases,
        clientTransport: clientTransport,
        sessionFactory: sessionFactory,
    }
}

func (connection *Connection) ID() string {
    return connection.id
}

func (connection *Connection) Room() string {
    connection.csLock.Lock()
    defer connection.csLock.Unlock()

    return connection.room
}

// HandleMessage decodes one inbound message and dispatches it. A non-nil
// result means the connection must be closed; the caller owns that mapping
// and the error never propagates past the connection boundary.
func (connection *Connection) HandleMessage(raw []byte) error {
    message, err := DecodeMessage(raw)

    if err != nil {
        return err
    }

    prometheusRecordMessage(message.Type)

    connection.csLock.Lock()
    defer connection.csLock.Unlock()

    if connection.closed {
        return EProtocolViolation
    }

    switch body := message.Body.(type) {
    case *AnnouncePresence:
        return connection.announce(body)
    case *Changes:
        if connection.session == nil {
            Log.Warningf("Connection %s sent changes before announcing presence", connection.id)

            return EProtocolViolation
        }

        return connection.session.ReceiveChanges(body)
    case *RejectChanges:
        if connection.session == nil {
            Log.Warningf("Connection %s sent a rejection before announcing presence", connection.id)

            return EProtocolViolation
        }

        return connection.session.ChangesRejected(body)
    case *StartStreaming:
        Log.Warningf("Connection %s sent a server-only message", connection.id)

        return EProtocolViolation
    default:
        Log.Warningf("Connection %s sent an unexpected %s message", connection.id, MessageTypeName(message.Type))

        return EProtocolViolation
    }
}

func (connection *Connection) announce(announce *AnnouncePresence) error {
    if connection.session != nil {
        Log.Warningf("Connection %s announced presence twice", connection.id)

        return EProtocolViolation
    }

    newSession, err := connection.sessionFactory.Create(connection.databases, connection.clientTransport, announce.Room, announce)

    if err != nil {
        Log.Errorf("Unable to create sync session for connection %s in room %s: %v", connection.id, announce.Room, err)

        return err
    }

    connection.room = announce.Room
    connection.session = newSession

    if err := newSession.Start(); err != nil {
        Log.Errorf("Unable to start sync session for connection %s in room %s: %v", connection.id, announce.Room, err)

        return err
    }

    return nil
}

func (connection *Connection) Close() {
    connection.csLock.Lock()
    defer connection.csLock.Unlock()

    if connection.closed {
        return
    }

    connection.closed = true

    if connection.session != nil {
        connection.session.Close()
    }
}
