// seed creates the default mess groups, an admin account and, optionally,
// demo students with a starter menu. Running it twice changes nothing.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed -admin-email admin@gmail.com -admin-password 'Admin@123' -demo-students 4
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/models"
)

func main() {
	opts := models.SeedOptionsFromEnv()
	flag.StringVar(&opts.AdminEmail, "admin-email", opts.AdminEmail, "Admin email (gmail address); defaults to ADMIN_EMAIL")
	flag.StringVar(&opts.AdminPassword, "admin-password", opts.AdminPassword, "Admin password; defaults to ADMIN_PASSWORD")
	flag.StringVar(&opts.AdminName, "admin-name", opts.AdminName, "Admin display name")
	flag.IntVar(&opts.DemoStudents, "demo-students", opts.DemoStudents, "Number of demo students to create")
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	if *migrate {
		if err := models.Migrate(config.GetDB()); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	result, err := models.Seed(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("groups created: %d\n", result.GroupsCreated)
	fmt.Printf("admin created: %t\n", result.AdminCreated)
	fmt.Printf("students created: %d\n", result.StudentsCreated)
	fmt.Printf("menus created: %d\n", result.MenusCreated)
}
