package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// CliConfig holds the parser options and the streams commands write to
type CliConfig struct {
	Name        string
	Description string
	Stdout      io.Writer
	Stderr      io.Writer
	Exit        func(int)
}

const minPasswordLength = 8

// DBFlags selects the database a command works on
type DBFlags struct {
	DatabaseDriver string `name:"database-driver" env:"DATABASE_DRIVER" default:"postgres" enum:"postgres,sqlite3" help:"SQL driver."`
	DatabaseURL    string `name:"database-url" env:"DATABASE_URL" required:"" help:"Database connection string, or file path for sqlite3."`
}

type cliArgs struct {
	User struct {
		Create struct {
			DBFlags  `embed:""`
			Username string `required:"" help:"Sign-in name."`
			Password string `required:"" help:"Initial password (at least 8 characters)."`
			Name     string `help:"Display name."`
			Email    string `help:"Email address."`
		} `cmd:"" help:"Create a user account."`
		List struct {
			DBFlags `embed:""`
		} `cmd:"" help:"List user accounts."`
	} `cmd:"" help:"Manage user accounts."`
	Genkey struct {
		Size int `default:"32" help:"Key size in bytes (16, 24 or 32)."`
	} `cmd:"" help:"Print a base64 AES key for ENCRYPTION_KEY."`
	Migrate struct {
		DBFlags `embed:""`
	} `cmd:"" help:"Create the database schema."`
}

// Cli parses args and runs the selected subcommand
func Cli(args []string, config *CliConfig) (int, error) {
	var cli cliArgs
	parser, err := kong.New(&cli,
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
	)
	if err != nil {
		return 1, err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch kctx.Command() {
	case "genkey":
		key, err := storage.GenerateKey(cli.Genkey.Size)
		if err != nil {
			return 1, err
		}
		fmt.Fprintln(config.Stdout, key)
		return 0, nil

	case "migrate":
		db, err := openDB(cli.Migrate.DBFlags)
		if err != nil {
			return 1, err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return 1, err
		}
		fmt.Fprintf(config.Stdout, "Schema applied (%s)\n", db.Driver())
		return 0, nil

	case "user create":
		c := cli.User.Create
		db, err := openDB(c.DBFlags)
		if err != nil {
			return 1, err
		}
		defer db.Close()

		user, err := createUser(ctx, db.NewUserRepository(), c.Username, c.Password, c.Name, c.Email)
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(config.Stdout, "Created user %s (%s)\n", user.Username, user.ID)
		return 0, nil

	case "user list":
		db, err := openDB(cli.User.List.DBFlags)
		if err != nil {
			return 1, err
		}
		defer db.Close()

		users, err := db.NewUserRepository().List(ctx)
		if err != nil {
			return 1, err
		}
		printUsers(config.Stdout, users)
		return 0, nil
	}

	return 1, fmt.Errorf("unknown command %q", kctx.Command())
}

func openDB(flags DBFlags) (*storage.DB, error) {
	cfg := storage.DefaultDBConfig()
	cfg.Driver = flags.DatabaseDriver
	cfg.DSN = flags.DatabaseURL
	return storage.NewDB(cfg)
}

type userCreator interface {
	Create(ctx context.Context, user *models.User) error
}

func createUser(ctx context.Context, users userCreator, username, password, name, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}

	hash, err := utils.HashPasswordArgon2(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return nil, fmt.Errorf("user %q already exists", username)
		}
		return nil, err
	}
	return user, nil
}

func printUsers(w io.Writer, users []*models.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Email, u.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
