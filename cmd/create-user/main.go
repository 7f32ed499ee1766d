package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"time"

	"twin_gateway/internal/auth"
	"twin_gateway/internal/config"
	"twin_gateway/internal/i18n"
	"twin_gateway/internal/models"
	"twin_gateway/internal/storage"
)

// create-user registers an account directly against the database, for
// bootstrapping environments where the HTTP API is not up yet.
func main() {
	email := flag.String("email", "", "account email address")
	password := flag.String("password", "", "account password (min 8 characters)")
	language := flag.String("language", "es", "preferred language (es or en)")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -email and -password are required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid email address: %s\n", *email)
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "ERROR: password must be at least 8 characters")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.NewDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := &models.User{
		Email:        *email,
		PasswordHash: hash,
		Language:     i18n.Normalize(*language),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := storage.NewUserRepository(db)
	if err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			fmt.Fprintf(os.Stderr, "ERROR: an account with email %s already exists\n", *email)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "ERROR: failed to create account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Account created: %s (id %d, language %s)\n", user.Email, user.ID, user.Language)
}
