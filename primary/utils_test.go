package primary_test

import (
    "net"
    "sync"

    . "github.com/PelionIoT/dbsync/protocol"
)

// fakePrimary plays the primary's side of the link protocol over one end of
// an in-memory pipe. Pings are answered with pongs when autoPong is set and
// never surface on the requests channel.
type fakePrimary struct {
    conn net.Conn
    autoPong bool
    requests chan *Message
    closed chan bool
    writeLock sync.Mutex
    pingLock sync.Mutex
    pings int
}

func newFakePrimary(autoPong bool) (*fakePrimary, func(address string) (net.Conn, error)) {
    clientSide, serverSide := net.Pipe()

    primary := &fakePrimary{
        conn: serverSide,
        autoPong: autoPong,
        requests: make(chan *Message, 100),
        closed: make(chan bool),
    }

    go primary.run()

    dial := func(address string) (net.Conn, error) {
        return clientSide, nil
    }

    return primary, dial
}

func (primary *fakePrimary) run() {
    defer close(primary.closed)

    for {
        raw, err := ReadFrame(primary.conn)

        if err != nil {
            return
        }

        message, err := DecodeMessage(raw)

        if err != nil {
            return
        }

        if message.Type == MSG_PING {
            primary.pingLock.Lock()
            primary.pings += 1
            primary.pingLock.Unlock()

            if primary.autoPong {
                primary.send(MSG_PONG, &Pong{ })
            }

            continue
        }

        primary.requests <- message
    }
}

func (primary *fakePrimary) send(messageType int, body interface{ }) error {
    raw, err := EncodeMessage(messageType, body)

    if err != nil {
        return err
    }

    primary.writeLock.Lock()
    defer primary.writeLock.Unlock()

    return WriteFrame(primary.conn, raw)
}

func (primary *fakePrimary) pingCount() int {
    primary.pingLock.Lock()
    defer primary.pingLock.Unlock()

    return primary.pings
}

func (primary *fakePrimary) destroy() {
    primary.conn.Close()
}
