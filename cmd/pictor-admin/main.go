// Package main is the entry point for the Pictor admin CLI.
// It manages the upload tracking records: listing users, blocking abusive
// addresses, and inspecting what a user has uploaded.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/config"
	"github.com/prn-tf/pictor/internal/repository"
	"github.com/prn-tf/pictor/internal/repository/postgres"
	"github.com/prn-tf/pictor/internal/repository/sqlite"
	"github.com/prn-tf/pictor/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Pictor Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUserCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "object":
		if err := runObjectCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUserCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("user subcommand required (list, block, unblock, uploads)")
	}

	ctx := context.Background()
	users, cleanup, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	switch args[0] {
	case "list":
		return listUsers(ctx, users)

	case "block":
		if len(args) < 2 {
			return fmt.Errorf("usage: pictor-admin user block <address>")
		}
		return setBlocked(ctx, users, args[1], true)

	case "unblock":
		if len(args) < 2 {
			return fmt.Errorf("usage: pictor-admin user unblock <address>")
		}
		return setBlocked(ctx, users, args[1], false)

	case "uploads":
		if len(args) < 2 {
			return fmt.Errorf("usage: pictor-admin user uploads <address> [limit]")
		}
		limit := 50
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[2])
			}
			limit = n
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		return listUploads(ctx, users, store, args[1], limit)

	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func listUsers(ctx context.Context, users repository.UserRepository) error {
	records, err := users.List(ctx, 1000, 0)
	if err != nil {
		return err
	}

	fmt.Printf("%-6s %-42s %-8s %s\n", "ID", "ADDRESS", "BLOCKED", "CREATED")
	for _, u := range records {
		fmt.Printf("%-6d %-42s %-8t %s\n", u.ID, u.Address, u.Blocked, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func setBlocked(ctx context.Context, users repository.UserRepository, address string, blocked bool) error {
	user, err := users.GetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if err := users.SetBlocked(ctx, user.ID, blocked); err != nil {
		return err
	}
	action := "unblocked"
	if blocked {
		action = "blocked"
	}
	fmt.Printf("%s %s\n", action, address)
	return nil
}

func listUploads(ctx context.Context, users repository.UserRepository, store storage.Backend, address string, limit int) error {
	user, err := users.GetByAddress(ctx, address)
	if err != nil {
		return err
	}
	uploads, err := users.ListUploads(ctx, user.ID, limit)
	if err != nil {
		return err
	}

	for _, up := range uploads {
		// A tracking record can outlive its blob if the data dir was pruned.
		marker := ""
		if ok, err := store.Exists(ctx, up.Hash); err == nil && !ok {
			marker = "  (missing)"
		}
		fmt.Printf("%s  %s/%s%s\n", up.CreatedAt.Format("2006-01-02 15:04:05"), up.Hash[:2], up.Hash[2:], marker)
	}
	return nil
}

func runObjectCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("object subcommand and hash required (cat, stat)")
	}

	ctx := context.Background()
	store, err := openStore()
	if err != nil {
		return err
	}
	hash := args[1]

	switch args[0] {
	case "cat":
		rc, err := store.Open(ctx, hash)
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(os.Stdout, rc)
		return err

	case "stat":
		ok, err := store.Exists(ctx, hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no object %s", hash)
		}
		path, err := store.Path(hash)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	default:
		return fmt.Errorf("unknown object subcommand: %s", args[0])
	}
}

// openStore builds the blob store from the server configuration.
func openStore() (storage.Backend, error) {
	cfg, err := config.Load(os.Getenv("PICTOR_CONFIG"))
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	return storage.NewFileStore(storage.PathConfig{DataDir: cfg.Storage.DataDir}, logger), nil
}

// openRepository connects to the database named in the server configuration.
// The CLI reads the same config file and environment the server does.
func openRepository(ctx context.Context) (repository.UserRepository, func(), error) {
	cfg, err := config.Load(os.Getenv("PICTOR_CONFIG"))
	if err != nil {
		return nil, nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { db.Close() }, nil
	}

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewUserRepository(db), func() { db.Close() }, nil
}

func printUsage() {
	fmt.Println(`Pictor Admin CLI

Usage:
  pictor-admin <command> [arguments]

Commands:
  user list                      List tracked upload addresses
  user block <address>           Put an address on the blacklist
  user unblock <address>         Remove an address from the blacklist
  user uploads <address> [n]     Show the latest uploads of an address
  object cat <hash>              Write a stored blob to stdout
  object stat <hash>             Print the physical path of a stored blob
  version                        Print version information
  help                           Show this help message

Environment Variables:
  PICTOR_CONFIG    Path to the server config file (optional)

Examples:
  pictor-admin user list
  pictor-admin user block 203.0.113.7
  pictor-admin user uploads 203.0.113.7 20
  pictor-admin object stat deadbeefdeadbeefdeadbeefdeadbeefdeadbeef`)
}
