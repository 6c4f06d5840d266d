package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"folio/internal/config"
	"folio/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		up         = flag.Bool("up", false, "Apply pending migrations")
		down       = flag.Bool("down", false, "Roll back all migrations")
		version    = flag.Bool("version", false, "Show the current migration version")
		force      = flag.Int("force", -1, "Force the migration version (clears a dirty state)")
		drop       = flag.Bool("drop", false, "Drop every table")
		dir        = flag.String("dir", "", "Migrations directory, empty uses the embedded migrations")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	migrationsDir := *dir
	if migrationsDir == "" {
		migrationsDir = cfg.Database.MigrationsDir
	}

	dbConfig := &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Timeout:  cfg.Database.Timeout,
	}

	db, err := database.NewConnection(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationsDir)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *down:
		run("Rolling back migrations", migrator.Down)
	case *version:
		showVersion(migrator)
	case *force >= 0:
		run(fmt.Sprintf("Forcing migration version %d", *force), func() error {
			return migrator.Force(*force)
		})
	case *drop:
		log.Println("WARNING: dropping every table")
		run("Dropping tables", migrator.Drop)
	case *up:
		fallthrough
	default:
		run("Applying migrations", migrator.Up)
	}
}

func run(action string, fn func() error) {
	log.Printf("%s...", action)
	if err := fn(); err != nil {
		log.Fatalf("%s failed: %v", action, err)
	}
	log.Printf("%s done", action)
}

func showVersion(migrator *database.Migrator) {
	version, err := migrator.Version()
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Current migration version: %d\n", version)
}

func showHelp() {
	fmt.Println("Folio database migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [options]")
	fmt.Println()
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -up")
	fmt.Println("  migrate -version")
	fmt.Println("  migrate -force 1    # clear a dirty state at version 1")
	fmt.Println("  migrate -config configs/production.yaml -up")
}
