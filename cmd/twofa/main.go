package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/driplo/twofa"
	"github.com/driplo/twofa/services/auth"
	"go.uber.org/fx"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "create-user":
			createUser(os.Args[2:])
			return
		case "-h", "--help", "help":
			printHelp()
			return
		default:
			printHelp()
			os.Exit(2)
		}
	}

	app, err := twofa.New()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	app.Run()
}

// createUser seeds an account without starting the HTTP server.
func createUser(args []string) {
	if len(args) < 2 {
		printHelp()
		os.Exit(2)
	}

	user := &auth.User{
		Email:       args[0],
		AccountType: auth.AccountPersonal,
		Role:        auth.RoleUser,
	}
	if len(args) > 2 {
		user.AccountType = args[2]
	}
	if len(args) > 3 {
		user.Role = args[3]
	}

	var users *auth.Service
	app, err := twofa.New(twofa.WithFxOptions(fx.Populate(&users)))
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := users.CreateUser(ctx, user, args[1]); err != nil {
		log.Fatalf("create user: %v", err)
	}
	fmt.Printf("created user %d (%s, %s/%s)\n", user.ID, user.Email, user.AccountType, user.Role)

	app.Stop()
}

func printHelp() {
	fmt.Println(`twofa - two-factor authentication service

Usage:
  twofa                                                 serve HTTP using configuration from the environment
  twofa create-user <email> <password> [account] [role] create an account (account: personal|brand, role: user|admin)
  twofa help                                            show this help`)
}
