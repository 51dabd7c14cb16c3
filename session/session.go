package session

import (
    "sync"

    "github.com/PelionIoT/dbsync/cache"
    "github.com/PelionIoT/dbsync/transport"

    . "github.com/PelionIoT/dbsync/logging"
    . "github.com/PelionIoT/dbsync/protocol"
)

// Session is one client's active synchronization exchange for one room.
// A connection owns at most one session and calls it from a single
// goroutine, so implementations only need to guard state shared with Close.
type Session interface {
    Start() error
    ReceiveChanges(changes *Changes) error
    ChangesRejected(rejection *RejectChanges) error
    Close()
}

type Factory interface {
    Create(databases *cache.Cache, clientTransport transport.Transport, room string, announce *AnnouncePresence) (Session, error)
}

type SyncSessionFactory struct {
}

func NewSyncSessionFactory() *SyncSessionFactory {
    return &SyncSessionFactory{ }
}

func (factory *SyncSessionFactory) Create(databases *cache.Cache, clientTransport transport.Transport, room string, announce *AnnouncePresence) (Session, error) {
    database, err := databases.Get(room)

    if err != nil {
        return nil, err
    }

    return &SyncSession{
        database: database,
        clientTransport: clientTransport,
        room: room,
        clientID: announce.ClientID,
        since: announce.Since,
    }, nil
}

type SyncSession struct {
    database *cache.Database
    clientTransport transport.Transport
    room string
    clientID string
    since uint64
    csLock sync.Mutex
    closed bool
}

// Start tells the client where the server's change log currently ends so
// the client knows which of its changes still need to be sent.
func (syncSession *SyncSession) Start() error {
    encodedMessage, err := EncodeMessage(MSG_START_STREAMING, &StartStreaming{ Since: syncSession.database.Seq() })

    if err != nil {
        return err
    }

    if err := syncSession.clientTransport.Send(encodedMessage); err != nil {
        return err
    }

    Log.Infof("Started sync session for client %s in room %s", syncSession.clientID, syncSession.room)

    return nil
}

func (syncSession *SyncSession) ReceiveChanges(changes *Changes) error {
    if syncSession.isClosed() {
        return EProtocolViolation
    }

    seq, err := syncSession.database.ApplyChanges(changes.Changes)

    if err != nil {
        return err
    }

    Log.Debugf("Applied %d changes from client %s in room %s. Log sequence is now %d", len(changes.Changes), syncSession.clientID, syncSession.room, seq)

    return nil
}

func (syncSession *SyncSession) ChangesRejected(rejection *RejectChanges) error {
    if syncSession.isClosed() {
        return EProtocolViolation
    }

    Log.Warningf("Client %s rejected changes from %s since %d in room %s", syncSession.clientID, rejection.Whose, rejection.Since, syncSession.room)

    return nil
}

func (syncSession *SyncSession) Close() {
    syncSession.csLock.Lock()
    defer syncSession.csLock.Unlock()

    if syncSession.closed {
        return
    }

    syncSession.closed = true

    Log.Infof("Closed sync session for client %s in room %s", syncSession.clientID, syncSession.room)
}

func (syncSession *SyncSession) isClosed() bool {
    syncSession.csLock.Lock()
    defer syncSession.csLock.Unlock()

    return syncSession.closed
}
