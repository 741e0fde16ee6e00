package main

import (
	"log"
	"os"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/observation"
	"github.com/trezcool/eicr/core/user"
	emailsvc "github.com/trezcool/eicr/services/email"
	logsvc "github.com/trezcool/eicr/services/logger"
	"github.com/trezcool/eicr/storage/database"
	sqlxrepos "github.com/trezcool/eicr/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
		return
	}

	cat, err := checklist.Default()
	if err != nil {
		logger.Fatal("loading checklist", err)
		return
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	obsSvc := observation.NewService(cat, sqlxrepos.NewObservationRepository(db), usrSvc, mailSvc, logger, conf)

	// start CLI
	cli := commandLine{
		db:      db,
		cat:     cat,
		usrRepo: usrRepo,
		inspSvc: inspection.NewService(cat, sqlxrepos.NewInspectionRepository(db), obsSvc, logger, conf),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
