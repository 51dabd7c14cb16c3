package cache

import (
    "encoding/binary"
    "encoding/json"
    "sync"

    "github.com/syndtr/goleveldb/leveldb"
    "github.com/syndtr/goleveldb/leveldb/opt"
    levelUtil "github.com/syndtr/goleveldb/leveldb/util"

    . "github.com/PelionIoT/dbsync/logging"
    . "github.com/PelionIoT/dbsync/protocol"
)

// Cache hands out the backing database for a room, creating it lazily on
// first use. All rooms share one leveldb instance; each room's change log
// lives under a room-prefixed keyspace.
type Cache struct {
    file string
    options *opt.Options
    db *leveldb.DB
    mapLock sync.Mutex
    databases map[string]*Database
}

func New(file string) (*Cache, error) {
    return NewWithOptions(file, nil)
}

func NewWithOptions(file string, options *opt.Options) (*Cache, error) {
    db, err := leveldb.OpenFile(file, options)

    if err != nil {
        Log.Criticalf("Unable to open database cache at %s: %v", file, err.Error())

        return nil, err
    }

    return &Cache{
        file: file,
        options: options,
        db: db,
        databases: make(map[string]*Database),
    }, nil
}

func (cache *Cache) Get(room string) (*Database, error) {
    cache.mapLock.Lock()
    defer cache.mapLock.Unlock()

    if database, ok := cache.databases[room]; ok {
        return database, nil
    }

    database := &Database{
        room: room,
        db: cache.db,
    }

    if err := database.loadSeq(); err != nil {
        Log.Errorf("Unable to load change log for room %s: %v", room, err.Error())

        return nil, err
    }

    cache.databases[room] = database

    return database, nil
}

func (cache *Cache) Close() error {
    cache.mapLock.Lock()
    defer cache.mapLock.Unlock()

    if cache.db == nil {
        return nil
    }

    err := cache.db.Close()

    cache.db = nil
    cache.databases = make(map[string]*Database)

    return err
}

// Database is one room's change log. Rows are keyed by a monotonic local
// sequence number assigned when the row is applied.
type Database struct {
    room string
    db *leveldb.DB
    logLock sync.Mutex
    nextSeq uint64
}

func (database *Database) Room() string {
    return database.room
}

func (database *Database) Seq() uint64 {
    database.logLock.Lock()
    defer database.logLock.Unlock()

    return database.nextSeq
}

func (database *Database) ApplyChanges(changes []Change) (uint64, error) {
    database.logLock.Lock()
    defer database.logLock.Unlock()

    batch := new(leveldb.Batch)

    for _, change := range changes {
        encodedChange, err := json.Marshal(change)

        if err != nil {
            return database.nextSeq, err
        }

        batch.Put(database.changeKey(database.nextSeq), encodedChange)
        database.nextSeq += 1
    }

    if err := database.db.Write(batch, nil); err != nil {
        Log.Errorf("Unable to write change batch for room %s: %v", database.room, err.Error())

        return database.nextSeq, err
    }

    return database.nextSeq, nil
}

func (database *Database) Changes(since uint64) ([]Change, error) {
    database.logLock.Lock()
    defer database.logLock.Unlock()

    iter := database.db.NewIterator(&levelUtil.Range{ Start: database.changeKey(since), Limit: database.changeKey(database.nextSeq) }, nil)
    defer iter.Release()

    changes := make([]Change, 0)

    for iter.Next() {
        var change Change

        if err := json.Unmarshal(iter.Value(), &change); err != nil {
            return nil, err
        }

        changes = append(changes, change)
    }

    if iter.Error() != nil {
        return nil, iter.Error()
    }

    return changes, nil
}

func (database *Database) changeKey(seq uint64) []byte {
    key := make([]byte, 0, len(database.room) + 9)
    key = append(key, []byte(database.room)...)
    key = append(key, 0)

    var seqBytes [8]byte

    binary.BigEndian.PutUint64(seqBytes[:], seq)

    return append(key, seqBytes[:]...)
}

// loadSeq recovers the next sequence number from the last persisted row so
// sequence numbers keep increasing across restarts.
func (database *Database) loadSeq() error {
    prefix := append([]byte(database.room), 0)
    iter := database.db.NewIterator(levelUtil.BytesPrefix(prefix), nil)
    defer iter.Release()

    if !iter.Last() {
        database.nextSeq = 0

        return iter.Error()
    }

    key := iter.Key()
    database.nextSeq = binary.BigEndian.Uint64(key[len(key) - 8:]) + 1

    return iter.Error()
}
