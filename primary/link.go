package primary

import (
    "net"
    "sync"
    "time"

    . "github.com/PelionIoT/dbsync/logging"
    . "github.com/PelionIoT/dbsync/protocol"
)

const DEFAULT_PING_INTERVAL_SECONDS = 1
const PONG_TIMEOUT_MULTIPLE = 5
const DIAL_TIMEOUT_SECONDS = 10

// RemoteError is an Err message received from the primary in response to a
// forwarded write.
type RemoteError struct {
    RequestID uint64
    Message string
}

func (remoteError *RemoteError) Error() string {
    return remoteError.Message
}

type LinkConfig struct {
    // PrimaryInstanceID identifies the primary process this link targets.
    PrimaryInstanceID string
    // AppNamespace qualifies the primary's address when the deployment
    // partitions instances by application. Empty means the instance id is
    // used as the address directly.
    AppNamespace string
    // PingInterval defaults to DEFAULT_PING_INTERVAL_SECONDS when zero.
    // The peer is considered unresponsive after PONG_TIMEOUT_MULTIPLE
    // intervals without a pong.
    PingInterval time.Duration
    // Dial overrides the transport used to reach the computed address.
    // The default dials a TCP connection.
    Dial func(address string) (net.Conn, error)
    // OnPrematurelyClosed fires exactly once if the link dies for any
    // reason other than a local Close: dial failure, socket error,
    // unsolicited close, heartbeat timeout, or an uncorrelatable response.
    // The owner is responsible for building a replacement link; the link
    // itself never reconnects.
    OnPrematurelyClosed func(err error)
}

type linkResult struct {
    body interface{ }
    err error
}

// Link provides request/response semantics over one persistent stream
// socket to the primary. Many requests may be in flight at once; responses
// correlate by request id, not arrival order. A heartbeat loop detects
// unresponsive peers faster than the transport would.
type Link struct {
    primaryInstanceID string
    address string
    pingInterval time.Duration
    dial func(address string) (net.Conn, error)
    onPrematurelyClosed func(err error)

    lock sync.Mutex
    writeLock sync.Mutex
    connection net.Conn
    closed bool
    lastPong time.Time
    nextRequestID uint64
    pendingCreateDb map[uint64]chan linkResult
    pendingApplyChanges map[uint64]chan linkResult

    readyChan chan bool
    doneChan chan bool
    heartbeatStopChan chan bool
}

func NewLink(config LinkConfig) *Link {
    link := &Link{
        primaryInstanceID: config.PrimaryInstanceID,
        address: primaryAddress(config.PrimaryInstanceID, config.AppNamespace),
        pingInterval: config.PingInterval,
        dial: config.Dial,
        onPrematurelyClosed: config.OnPrematurelyClosed,
        nextRequestID: 1,
        pendingCreateDb: make(map[uint64]chan linkResult),
        pendingApplyChanges: make(map[uint64]chan linkResult),
        readyChan: make(chan bool),
        doneChan: make(chan bool),
        heartbeatStopChan: make(chan bool, 1),
    }

    if link.pingInterval == 0 {
        link.pingInterval = time.Second * DEFAULT_PING_INTERVAL_SECONDS
    }

    if link.dial == nil {
        link.dial = func(address string) (net.Conn, error) {
            return net.DialTimeout("tcp", address, time.Second * DIAL_TIMEOUT_SECONDS)
        }
    }

    go link.run()

    return link
}

func primaryAddress(primaryInstanceID string, appNamespace string) string {
    if appNamespace == "" {
        return primaryInstanceID
    }

    return appNamespace + "/" + primaryInstanceID
}

func (link *Link) PrimaryInstanceID() string {
    return link.primaryInstanceID
}

func (link *Link) run() {
    connection, err := link.dial(link.address)

    if err != nil {
        Log.Errorf("Unable to connect to primary %s at %s: %v", link.primaryInstanceID, link.address, err)

        link.teardown(err, true)

        return
    }

    link.lock.Lock()

    if link.closed {
        link.lock.Unlock()
        connection.Close()

        return
    }

    link.connection = connection
    link.lastPong = time.Now()
    link.lock.Unlock()

    close(link.readyChan)

    Log.Infof("Connected to primary %s at %s", link.primaryInstanceID, link.address)

    go link.heartbeat()

    for {
        raw, err := ReadFrame(connection)

        if err != nil {
            link.teardown(err, true)

            return
        }

        message, err := DecodeMessage(raw)

        if err != nil {
            Log.Errorf("Primary %s sent a misformatted message: %v", link.primaryInstanceID, err)

            link.teardown(err, true)

            return
        }

        if err := link.route(message); err != nil {
            Log.Errorf("Unable to route %s message from primary %s: %v", MessageTypeName(message.Type), link.primaryInstanceID, err)

            link.teardown(err, true)

            return
        }
    }
}

func (link *Link) route(message *Message) error {
    switch body := message.Body.(type) {
    case *Pong:
        link.lock.Lock()
        link.lastPong = time.Now()
        link.lock.Unlock()

        return nil
    case *CreateDbOnPrimaryResponse:
        return link.resolve(link.pendingCreateDb, body.RequestID, linkResult{ body: body })
    case *ApplyChangesOnPrimaryResponse:
        return link.resolve(link.pendingApplyChanges, body.RequestID, linkResult{ body: body })
    case *Err:
        // An error response does not say which request family it belongs
        // to. Try the create-db table first, then apply-changes.
        rejection := linkResult{ err: &RemoteError{ RequestID: body.RequestID, Message: body.Err } }

        if err := link.resolve(link.pendingCreateDb, body.RequestID, rejection); err == nil {
            return nil
        }

        return link.resolve(link.pendingApplyChanges, body.RequestID, rejection)
    default:
        return EProtocolViolation
    }
}

func (link *Link) resolve(pending map[uint64]chan linkResult, requestID uint64, result linkResult) error {
    link.lock.Lock()

    resultChan, ok := pending[requestID]

    if !ok {
        link.lock.Unlock()

        return EUnknownRequest
    }

    delete(pending, requestID)
    link.lock.Unlock()

    resultChan <- result

    return nil
}

func (link *Link) heartbeat() {
    pingTicker := time.NewTicker(link.pingInterval)
    defer pingTicker.Stop()

    for {
        select {
        case <-pingTicker.C:
        case <-link.heartbeatStopChan:
            return
        }

        link.lock.Lock()

        if link.closed {
            link.lock.Unlock()

            return
        }

        elapsed := time.Since(link.lastPong)
        connection := link.connection
        link.lock.Unlock()

        if elapsed > link.pingInterval * PONG_TIMEOUT_MULTIPLE {
            Log.Errorf("Primary %s has not responded to a ping in %v. Destroying connection", link.primaryInstanceID, elapsed)

            // Destroying the socket unblocks the read loop, which performs
            // the teardown. Waiting for the OS to report a socket error
            // could take arbitrarily long on a half-open connection.
            connection.Close()

            return
        }

        if err := link.send(MSG_PING, &Ping{ }); err != nil {
            Log.Errorf("Unable to send ping to primary %s: %v", link.primaryInstanceID, err)

            return
        }
    }
}

func (link *Link) send(messageType int, body interface{ }) error {
    encodedMessage, err := EncodeMessage(messageType, body)

    if err != nil {
        return err
    }

    link.lock.Lock()
    connection := link.connection
    closed := link.closed
    link.lock.Unlock()

    if closed || connection == nil {
        return EClosed
    }

    link.writeLock.Lock()
    defer link.writeLock.Unlock()

    return WriteFrame(connection, encodedMessage)
}

// SendCreateDb forwards a create-db write to the primary and blocks until
// the matching response or error arrives, or until the link dies. A zero
// request id is replaced with the next id from the link's counter.
func (link *Link) SendCreateDb(message *CreateDbOnPrimary) (*CreateDbOnPrimaryResponse, error) {
    if err := link.awaitReady(); err != nil {
        return nil, err
    }

    requestID, resultChan, err := link.register(link.pendingCreateDb, message.RequestID)

    if err != nil {
        return nil, err
    }

    message.RequestID = requestID

    if err := link.send(MSG_CREATE_DB_ON_PRIMARY, message); err != nil {
        link.unregister(link.pendingCreateDb, requestID)

        return nil, err
    }

    result := <-resultChan

    if result.err != nil {
        return nil, result.err
    }

    return result.body.(*CreateDbOnPrimaryResponse), nil
}

// SendApplyChanges is the apply-changes counterpart of SendCreateDb.
func (link *Link) SendApplyChanges(message *ApplyChangesOnPrimary) (*ApplyChangesOnPrimaryResponse, error) {
    if err := link.awaitReady(); err != nil {
        return nil, err
    }

    requestID, resultChan, err := link.register(link.pendingApplyChanges, message.RequestID)

    if err != nil {
        return nil, err
    }

    message.RequestID = requestID

    if err := link.send(MSG_APPLY_CHANGES_ON_PRIMARY, message); err != nil {
        link.unregister(link.pendingApplyChanges, requestID)

        return nil, err
    }

    result := <-resultChan

    if result.err != nil {
        return nil, result.err
    }

    return result.body.(*ApplyChangesOnPrimaryResponse), nil
}

func (link *Link) awaitReady() error {
    select {
    case <-link.readyChan:
        return nil
    case <-link.doneChan:
        return EClosed
    }
}

func (link *Link) register(pending map[uint64]chan linkResult, requestID uint64) (uint64, chan linkResult, error) {
    link.lock.Lock()
    defer link.lock.Unlock()

    if link.closed {
        return 0, nil, EClosed
    }

    if requestID == 0 {
        requestID = link.nextRequestID
        link.nextRequestID += 1
    } else if _, ok := pending[requestID]; ok {
        return 0, nil, EDuplicateRequest
    }

    resultChan := make(chan linkResult, 1)
    pending[requestID] = resultChan

    return requestID, resultChan, nil
}

func (link *Link) unregister(pending map[uint64]chan linkResult, requestID uint64) {
    link.lock.Lock()
    defer link.lock.Unlock()

    delete(pending, requestID)
}

// Close tears the link down locally. It is safe to call more than once and
// never fires OnPrematurelyClosed.
func (link *Link) Close() {
    link.teardown(nil, false)
}

func (link *Link) teardown(reason error, premature bool) {
    link.lock.Lock()

    if link.closed {
        link.lock.Unlock()

        return
    }

    link.closed = true

    if link.connection != nil {
        link.connection.Close()
    }

    // Every pending request is rejected before teardown completes so no
    // caller hangs on a dead link. The sweep is a synthetic failure, not a
    // response, so there is no request id to report.
    swept := make([]chan linkResult, 0, len(link.pendingCreateDb) + len(link.pendingApplyChanges))

    for requestID, resultChan := range link.pendingCreateDb {
        delete(link.pendingCreateDb, requestID)
        swept = append(swept, resultChan)
    }

    for requestID, resultChan := range link.pendingApplyChanges {
        delete(link.pendingApplyChanges, requestID)
        swept = append(swept, resultChan)
    }

    link.lock.Unlock()

    select {
    case link.heartbeatStopChan <- true:
    default:
    }

    close(link.doneChan)

    for _, resultChan := range swept {
        resultChan <- linkResult{ err: EClosed }
    }

    if premature {
        Log.Errorf("Connection to primary %s closed prematurely: %v", link.primaryInstanceID, reason)

        if link.onPrematurelyClosed != nil {
            link.onPrematurelyClosed(reason)
        }
    }
}
