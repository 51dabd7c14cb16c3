package protocol

import (
    "encoding/json"
)

type rawMessage struct {
    Type int `json:"type"`
    Body json.RawMessage `json:"body"`
}

// Message is a decoded tagged message. Body holds a pointer to the struct
// matching Type.
type Message struct {
    Type int `json:"type"`
    Body interface{ } `json:"body"`
}

func EncodeMessage(messageType int, body interface{ }) ([]byte, error) {
    encodedBody, err := json.Marshal(body)

    if err != nil {
        return nil, ESerialization
    }

    encodedMessage, err := json.Marshal(rawMessage{ Type: messageType, Body: encodedBody })

    if err != nil {
        return nil, ESerialization
    }

    return encodedMessage, nil
}

func DecodeMessage(raw []byte) (*Message, error) {
    var nextRawMessage rawMessage
    var nextMessage Message

    if err := json.Unmarshal(raw, &nextRawMessage); err != nil {
        return nil, ESerialization
    }

    nextMessage.Type = nextRawMessage.Type

    var err error

    switch nextRawMessage.Type {
    case MSG_ANNOUNCE_PRESENCE:
        var announce AnnouncePresence
        err = json.Unmarshal(nextRawMessage.Body, &announce)
        nextMessage.Body = &announce
    case MSG_CHANGES:
        var changes Changes
        err = json.Unmarshal(nextRawMessage.Body, &changes)
        nextMessage.Body = &changes
    case MSG_REJECT_CHANGES:
        var rejectChanges RejectChanges
        err = json.Unmarshal(nextRawMessage.Body, &rejectChanges)
        nextMessage.Body = &rejectChanges
    case MSG_START_STREAMING:
        var startStreaming StartStreaming
        err = json.Unmarshal(nextRawMessage.Body, &startStreaming)
        nextMessage.Body = &startStreaming
    case MSG_CREATE_DB_ON_PRIMARY:
        var createDb CreateDbOnPrimary
        err = json.Unmarshal(nextRawMessage.Body, &createDb)
        nextMessage.Body = &createDb
    case MSG_CREATE_DB_ON_PRIMARY_RESPONSE:
        var createDbResponse CreateDbOnPrimaryResponse
        err = json.Unmarshal(nextRawMessage.Body, &createDbResponse)
        nextMessage.Body = &createDbResponse
    case MSG_APPLY_CHANGES_ON_PRIMARY:
        var applyChanges ApplyChangesOnPrimary
        err = json.Unmarshal(nextRawMessage.Body, &applyChanges)
        nextMessage.Body = &applyChanges
    case MSG_APPLY_CHANGES_ON_PRIMARY_RESPONSE:
        var applyChangesResponse ApplyChangesOnPrimaryResponse
        err = json.Unmarshal(nextRawMessage.Body, &applyChangesResponse)
        nextMessage.Body = &applyChangesResponse
    case MSG_PING:
        var ping Ping
        err = json.Unmarshal(nextRawMessage.Body, &ping)
        nextMessage.Body = &ping
    case MSG_PONG:
        var pong Pong
        err = json.Unmarshal(nextRawMessage.Body, &pong)
        nextMessage.Body = &pong
    case MSG_ERROR:
        var errMessage Err
        err = json.Unmarshal(nextRawMessage.Body, &errMessage)
        nextMessage.Body = &errMessage
    default:
        return nil, ESerialization
    }

    if err != nil {
        return nil, ESerialization
    }

    return &nextMessage, nil
}
