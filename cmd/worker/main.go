package main

import (
	"flag"
	"log"

	"customer-action-service/internal/activities"
	"customer-action-service/internal/store"
	"customer-action-service/internal/workflows"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	var (
		temporalHost string
		dbPath       string
	)
	flag.StringVar(&temporalHost, "temporal", "localhost:7233", "temporal frontend host:port")
	flag.StringVar(&dbPath, "db", "customer-actions.db", "sqlite database path")
	flag.Parse()

	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		log.Fatalf("unable to open store: %v", err)
	}
	defer st.Close()

	c, err := client.Dial(client.Options{HostPort: temporalHost})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.CustomerAction)

	a := activities.New(st, activities.LogNotifier{})
	w.RegisterActivity(a)

	log.Printf("worker started (taskQueue=%s, db=%s)\n", workflows.TaskQueue, dbPath)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker exited: %v", err)
	}
}
