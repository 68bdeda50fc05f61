package boot

import (
	"gigbook/src/db"
	"gigbook/src/lib"
	"gigbook/src/models"
	"log"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Booking{},
		&models.ConnectedAccount{},
		&models.Settlement{},
		&models.PayoutRequest{},
		&models.WebhookEvent{},
		&models.IdentityVerification{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
	log.Println("Jobs in queue:", len(sched.Jobs()))
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
