package cache_test

import (
    "io/ioutil"
    "os"

    . "github.com/PelionIoT/dbsync/cache"
    . "github.com/PelionIoT/dbsync/protocol"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
    var dbDir string
    var databases *Cache

    BeforeEach(func() {
        var err error

        dbDir, err = ioutil.TempDir("", "dbsync-cache-")

        Expect(err).Should(BeNil())

        databases, err = New(dbDir)

        Expect(err).Should(BeNil())
    })

    AfterEach(func() {
        databases.Close()
        os.RemoveAll(dbDir)
    })

    It("should return the same database for the same room", func() {
        databaseA, err := databases.Get("r1")

        Expect(err).Should(BeNil())

        databaseB, err := databases.Get("r1")

        Expect(err).Should(BeNil())
        Expect(databaseA).Should(BeIdenticalTo(databaseB))
    })

    It("should apply changes and read them back in sequence order", func() {
        database, err := databases.Get("r1")

        Expect(err).Should(BeNil())
        Expect(database.Seq()).Should(Equal(uint64(0)))

        seq, err := database.ApplyChanges([]Change{
            Change{ Key: "a", Value: []byte("1"), Seq: 10 },
            Change{ Key: "b", Value: []byte("2"), Seq: 11 },
        })

        Expect(err).Should(BeNil())
        Expect(seq).Should(Equal(uint64(2)))

        changes, err := database.Changes(0)

        Expect(err).Should(BeNil())
        Expect(changes).Should(Equal([]Change{
            Change{ Key: "a", Value: []byte("1"), Seq: 10 },
            Change{ Key: "b", Value: []byte("2"), Seq: 11 },
        }))

        changes, err = database.Changes(1)

        Expect(err).Should(BeNil())
        Expect(changes).Should(Equal([]Change{
            Change{ Key: "b", Value: []byte("2"), Seq: 11 },
        }))
    })

    It("should keep the change logs of different rooms separate", func() {
        databaseA, err := databases.Get("r1")

        Expect(err).Should(BeNil())

        databaseB, err := databases.Get("r2")

        Expect(err).Should(BeNil())

        _, err = databaseA.ApplyChanges([]Change{ Change{ Key: "a", Value: []byte("1"), Seq: 1 } })

        Expect(err).Should(BeNil())

        changes, err := databaseB.Changes(0)

        Expect(err).Should(BeNil())
        Expect(changes).Should(HaveLen(0))
        Expect(databaseB.Seq()).Should(Equal(uint64(0)))
    })

    It("should resume sequence numbers after a restart", func() {
        database, err := databases.Get("r1")

        Expect(err).Should(BeNil())

        _, err = database.ApplyChanges([]Change{
            Change{ Key: "a", Value: []byte("1"), Seq: 1 },
            Change{ Key: "b", Value: []byte("2"), Seq: 2 },
            Change{ Key: "c", Value: []byte("3"), Seq: 3 },
        })

        Expect(err).Should(BeNil())
        Expect(databases.Close()).Should(BeNil())

        databases, err = New(dbDir)

        Expect(err).Should(BeNil())

        database, err = databases.Get("r1")

        Expect(err).Should(BeNil())
        Expect(database.Seq()).Should(Equal(uint64(3)))
    })
})
