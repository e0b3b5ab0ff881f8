package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
	logsvc "github.com/bob-rietveld/unheard-v2-sub001/services/logger"
	"github.com/bob-rietveld/unheard-v2-sub001/storage/database"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("ADMIN"), conf)
	database.SetMigrationLogger(zl)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		errAndDie(logger, err)
	}
	db, err := database.Open(conf)
	if err != nil {
		errAndDie(logger, err)
	}
	if err = database.Ping(ctx, db, 5); err != nil {
		errAndDie(logger, err)
	}
	cancel()

	validate, translator := core.NewValidator()
	response.InitValidators(validate, translator)

	// start CLI
	cli := newCommandLine(db, logger, validate)
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	logger.Sync()
	if err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger *logsvc.RollbarLogger, err error) {
	logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
}
