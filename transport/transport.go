package transport

import (
    "errors"
    "sync"
    "time"

    "github.com/gorilla/websocket"

    . "github.com/PelionIoT/dbsync/logging"
)

const WRITE_WAIT_SECONDS = 10

// Transport wraps one message-oriented connection to a client. Handlers must
// be registered before Start is called. OnMessage is invoked once per
// inbound message, in arrival order, from a single goroutine; the next
// message is not delivered until the handler for the previous one returns.
type Transport interface {
    Send(raw []byte) error
    OnMessage(handler func(raw []byte))
    OnClose(handler func())
    OnError(handler func(err error))
    Start()
    Close()
}

type WSTransport struct {
    connection *websocket.Conn
    csLock sync.Mutex
    closed bool
    doneChan chan bool
    onMessage func(raw []byte)
    onClose func()
    onError func(err error)
}

func NewWSTransport(connection *websocket.Conn) *WSTransport {
    return &WSTransport{
        connection: connection,
        doneChan: make(chan bool, 1),
    }
}

func (transport *WSTransport) OnMessage(handler func(raw []byte)) {
    transport.onMessage = handler
}

func (transport *WSTransport) OnClose(handler func()) {
    transport.onClose = handler
}

func (transport *WSTransport) OnError(handler func(err error)) {
    transport.onError = handler
}

func (transport *WSTransport) Start() {
    go func() {
        defer close(transport.doneChan)

        for {
            _, raw, err := transport.connection.ReadMessage()

            if err != nil {
                if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || transport.isClosed() {
                    if transport.onClose != nil {
                        transport.onClose()
                    }
                } else {
                    Log.Errorf("Websocket transport read error: %v", err)

                    if transport.onError != nil {
                        transport.onError(err)
                    }
                }

                return
            }

            if transport.onMessage != nil {
                transport.onMessage(raw)
            }
        }
    }()
}

func (transport *WSTransport) Send(raw []byte) error {
    // this lock ensures mutual exclusion with close message sending in Close()
    transport.csLock.Lock()
    defer transport.csLock.Unlock()

    if transport.closed {
        return errors.New("Transport closed")
    }

    transport.connection.SetWriteDeadline(time.Now().Add(time.Second * WRITE_WAIT_SECONDS))

    return transport.connection.WriteMessage(websocket.BinaryMessage, raw)
}

func (transport *WSTransport) Close() {
    transport.csLock.Lock()

    if transport.closed {
        transport.csLock.Unlock()

        return
    }

    transport.closed = true
    transport.connection.SetWriteDeadline(time.Now().Add(time.Second * WRITE_WAIT_SECONDS))
    transport.connection.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
    transport.csLock.Unlock()

    select {
    case <-transport.doneChan:
    case <-time.After(time.Second):
    }

    transport.connection.Close()
}

func (transport *WSTransport) isClosed() bool {
    transport.csLock.Lock()
    defer transport.csLock.Unlock()

    return transport.closed
}
