package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"taskatlas/CronJobs"
	"taskatlas/FiberConfig"
	"taskatlas/Models"
	"taskatlas/Store"
	"taskatlas/Sync"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	db, err := Models.Connect(env("DB_PATH", "database.db"))
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	store, err := Store.New(db)
	if err != nil {
		log.Fatal("Failed to initialize document store:", err)
	}
	engine := Sync.NewEngine(store)

	// every five minutes unless configured otherwise
	reconciler := CronJobs.NewReconciler(store, env("RECONCILE_SCHEDULE", "0 */5 * * * *"))
	if err := reconciler.Start(); err != nil {
		log.Fatal("Failed to start reconciler:", err)
	}
	defer reconciler.Stop()

	if err := FiberConfig.Run(store, engine, reconciler, ":"+env("PORT", "3001")); err != nil {
		log.Fatal(err)
	}
}

func env(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
