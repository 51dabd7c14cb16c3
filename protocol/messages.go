package protocol

// Message types for the client-facing protocol and the primary-link protocol.
// Every message travels inside a tagged envelope. Request/response kinds
// carry a request id that correlates a response to the request that caused it.
const (
    MSG_ANNOUNCE_PRESENCE = iota
    MSG_CHANGES = iota
    MSG_REJECT_CHANGES = iota
    MSG_START_STREAMING = iota
    MSG_CREATE_DB_ON_PRIMARY = iota
    MSG_CREATE_DB_ON_PRIMARY_RESPONSE = iota
    MSG_APPLY_CHANGES_ON_PRIMARY = iota
    MSG_APPLY_CHANGES_ON_PRIMARY_RESPONSE = iota
    MSG_PING = iota
    MSG_PONG = iota
    MSG_ERROR = iota
)

func MessageTypeName(m int) string {
    names := map[int]string{
        MSG_ANNOUNCE_PRESENCE: "ANNOUNCE_PRESENCE",
        MSG_CHANGES: "CHANGES",
        MSG_REJECT_CHANGES: "REJECT_CHANGES",
        MSG_START_STREAMING: "START_STREAMING",
        MSG_CREATE_DB_ON_PRIMARY: "CREATE_DB_ON_PRIMARY",
        MSG_CREATE_DB_ON_PRIMARY_RESPONSE: "CREATE_DB_ON_PRIMARY_RESPONSE",
        MSG_APPLY_CHANGES_ON_PRIMARY: "APPLY_CHANGES_ON_PRIMARY",
        MSG_APPLY_CHANGES_ON_PRIMARY_RESPONSE: "APPLY_CHANGES_ON_PRIMARY_RESPONSE",
        MSG_PING: "PING",
        MSG_PONG: "PONG",
        MSG_ERROR: "ERROR",
    }

    return names[m]
}

// Change is one row of a change set. Seq orders changes within the
// database that produced them.
type Change struct {
    Key string `json:"key"`
    Value []byte `json:"value"`
    Seq uint64 `json:"seq"`
}

// AnnouncePresence must be the first message a client sends on a
// connection. Room names the database the client wants to synchronize.
type AnnouncePresence struct {
    Room string `json:"room"`
    ClientID string `json:"clientId"`
    Since uint64 `json:"since"`
}

type Changes struct {
    Sender string `json:"sender"`
    Since uint64 `json:"since"`
    Changes []Change `json:"changes"`
}

type RejectChanges struct {
    Whose string `json:"whose"`
    Since uint64 `json:"since"`
}

// StartStreaming is server to client only. Receiving it on the server side
// is a protocol violation.
type StartStreaming struct {
    Since uint64 `json:"since"`
    ExcludeSites []string `json:"excludeSites,omitempty"`
}

type CreateDbOnPrimary struct {
    RequestID uint64 `json:"reqid"`
    Room string `json:"room"`
}

type CreateDbOnPrimaryResponse struct {
    RequestID uint64 `json:"reqid"`
    Seq uint64 `json:"seq"`
}

type ApplyChangesOnPrimary struct {
    RequestID uint64 `json:"reqid"`
    Room string `json:"room"`
    Changes []Change `json:"changes"`
}

type ApplyChangesOnPrimaryResponse struct {
    RequestID uint64 `json:"reqid"`
    Seq uint64 `json:"seq"`
}

type Ping struct {
}

type Pong struct {
}

type Err struct {
    RequestID uint64 `json:"reqid"`
    Err string `json:"err"`
}
