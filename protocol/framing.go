package protocol

import (
    "encoding/binary"
    "io"
)

// Framing for the primary link's raw stream socket: a four byte big-endian
// length word followed by one encoded message envelope.
const MAX_FRAME_SIZE = 16 * 1024 * 1024

func WriteFrame(writer io.Writer, raw []byte) error {
    if len(raw) > MAX_FRAME_SIZE {
        return ESerialization
    }

    var lengthBytes [4]byte

    binary.BigEndian.PutUint32(lengthBytes[:], uint32(len(raw)))

    if _, err := writer.Write(lengthBytes[:]); err != nil {
        return err
    }

    if _, err := writer.Write(raw); err != nil {
        return err
    }

    return nil
}

func ReadFrame(reader io.Reader) ([]byte, error) {
    var lengthBytes [4]byte

    if _, err := io.ReadFull(reader, lengthBytes[:]); err != nil {
        return nil, err
    }

    length := binary.BigEndian.Uint32(lengthBytes[:])

    if length > MAX_FRAME_SIZE {
        return nil, ESerialization
    }

    raw := make([]byte, length)

    if _, err := io.ReadFull(reader, raw); err != nil {
        return nil, err
    }

    return raw, nil
}
