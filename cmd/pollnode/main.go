package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/api"
	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/mxe"
	"github.com/enclavote/enclavote/poll"
	"github.com/enclavote/enclavote/service"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
)

func main() {
	host := flag.String("host", "0.0.0.0", "API host to bind")
	port := flag.Int("port", 9090, "API port to listen on")
	dataDir := flag.String("datadir", "./pollnode-data", "data directory for the key-value store")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel, "stdout", nil)

	database, err := metadb.New(db.TypePebble, *dataDir)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(database)
	defer stg.Close()

	// The in-process engine stands in for the external MPC cluster. Its key
	// material is fresh on every start, so polls from a previous run cannot
	// be operated on after a restart.
	engine, err := mxe.New(stg)
	if err != nil {
		log.Fatalf("failed to create compute engine: %v", err)
	}
	clusterPub := engine.EncryptionPubKey()
	log.Infow("compute engine ready",
		"address", engine.Address().Hex(),
		"encryptionPubKey", types.HexBytes(clusterPub[:]).String(),
	)

	gw := gateway.New(stg, engine, gateway.Config{
		ClusterAddress:     engine.Address(),
		VerifyAttestations: true,
	})
	ctrl := poll.New(stg, gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gwService := service.NewGateway(gw)
	if err := gwService.Start(ctx); err != nil {
		log.Fatalf("failed to start computation worker: %v", err)
	}
	defer gwService.Stop()

	apiService := service.NewAPI(stg, ctrl, api.ClusterInfo{
		EncryptionPubKey: clusterPub[:],
		Address:          engine.Address(),
	}, *host, *port)
	if err := apiService.Start(ctx); err != nil {
		log.Fatalf("failed to start API service: %v", err)
	}
	defer apiService.Stop()

	log.Infow("pollnode running", "host", *host, "port", *port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infow("shutting down")
}
