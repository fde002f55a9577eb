// cmd/adduser/main.go
// Creates or updates an operator or checkpoint account in the database.
//
// Usage:
//
//	go run ./cmd/adduser -username cp99 -password testing
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/padraicbc/racetime/config"
	bundb "github.com/padraicbc/racetime/db"
	"github.com/padraicbc/racetime/handlers"
	"github.com/padraicbc/racetime/models"
)

func main() {
	username := flag.String("username", "", "username (required)")
	password := flag.String("password", "", "plain-text password (required)")
	flag.Parse()

	hash, err := handlers.HashPasswordForUser(*username, *password)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	cfg := config.Load()
	db, err := bundb.Setup(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	user := &models.User{
		Username: *username,
		Password: hash,
	}
	if err := bundb.NewStore(db).UpsertUser(ctx, user); err != nil {
		log.Fatal("insert user:", err)
	}

	fmt.Printf("user %q saved\n", *username)
}
