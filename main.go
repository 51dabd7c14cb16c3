package main

import (
    "flag"
    "fmt"
    "os"
    "time"

    "github.com/PelionIoT/dbsync/cache"
    "github.com/PelionIoT/dbsync/primary"
    "github.com/PelionIoT/dbsync/server"
    "github.com/PelionIoT/dbsync/session"
    "github.com/PelionIoT/dbsync/shared"

    . "github.com/PelionIoT/dbsync/logging"
)

var usage string =
`Usage: dbsync -conf=[config file]
`

func main() {
    confFile := flag.String("conf", "", "Config file for the sync server")

    flag.Parse()

    if *confFile == "" {
        fmt.Fprint(os.Stderr, usage)
        os.Exit(1)
    }

    var serverConfig shared.YAMLServerConfig

    if err := serverConfig.LoadFromFile(*confFile); err != nil {
        Log.Criticalf("Unable to load configuration from %s: %v", *confFile, err)
        os.Exit(1)
    }

    databases, err := cache.New(serverConfig.DBFile)

    if err != nil {
        Log.Criticalf("Unable to open database cache: %v", err)
        os.Exit(1)
    }

    defer databases.Close()

    if serverConfig.Primary != nil {
        // This instance is a replica. Writes are forwarded to the primary
        // over a dedicated link. Re-resolving the primary after the link
        // dies is an operational concern outside this process; the process
        // keeps serving reads either way.
        link := primary.NewLink(primary.LinkConfig{
            PrimaryInstanceID: serverConfig.Primary.InstanceID,
            AppNamespace: serverConfig.AppNamespace,
            PingInterval: time.Second * time.Duration(serverConfig.Primary.PingIntervalSeconds),
            OnPrematurelyClosed: func(err error) {
                Log.Errorf("Lost connection to primary %s: %v. Write forwarding is unavailable until a new link is established", serverConfig.Primary.InstanceID, err)
            },
        })

        defer link.Close()
    }

    syncServer := server.NewServer(server.ServerConfig{
        Host: serverConfig.Host,
        Port: serverConfig.Port,
        Databases: databases,
        SessionFactory: session.NewSyncSessionFactory(),
    })

    if err := syncServer.Start(); err != nil {
        Log.Criticalf("Sync server stopped: %v", err)
        os.Exit(1)
    }
}
