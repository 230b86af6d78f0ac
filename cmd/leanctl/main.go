// main.go - Admin control tool for the hit collector
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"leanstats/internal"
	"leanstats/internal/settings"
	"leanstats/internal/timeframe"
	"leanstats/internal/users"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&CreateUserCommand{},
	&ChangePasswordCommand{},
	&MigrateCommand{},
	&StatusCommand{},
	&ReportCommand{},
	&PruneRawLogsCommand{},
	&HelpCommand{},
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	// Help needs no database
	if _, ok := cmd.(*HelpCommand); ok {
		_ = cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	runErr := cmd.Execute(ctx, app, args)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Cleanup error: %v", err)
	}
	shutdownCancel()
	app.Components.Close()

	if runErr != nil {
		log.Fatalf("Command failed: %v", runErr)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// CreateUserCommand creates an operator account
type CreateUserCommand struct{}

func (c *CreateUserCommand) Name() string { return "create-user" }

func (c *CreateUserCommand) Description() string {
	return "Creates a user: <email> <password> [role] (role defaults to administrator)"
}

func (c *CreateUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <email> <password> [role]", c.Name())
	}

	email := args[0]
	password := args[1]
	role := users.RoleAdministrator
	if len(args) >= 3 {
		role = args[2]
	}
	if !users.IsKnownRole(role) {
		return fmt.Errorf("unknown role %q, expected one of %s", role, strings.Join(users.KnownRoles(), ", "))
	}

	log.Printf("Creating %s user with email: %s", role, email)

	if _, err := users.CreateUser(app.DBManager.GetConnection(), email, password, role); err != nil {
		if errors.Is(err, users.ErrUserExists) {
			log.Printf("User %s already exists", email)
			return nil
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// ChangePasswordCommand updates the password of an existing user
type ChangePasswordCommand struct{}

func (c *ChangePasswordCommand) Name() string { return "change-password" }

func (c *ChangePasswordCommand) Description() string {
	return "Changes the password of an existing user: <email> [password]"
}

func (c *ChangePasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var email string
	if len(args) >= 1 {
		email = args[0]
	} else {
		fmt.Print("Enter email: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		email = strings.TrimSpace(input)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	db := app.DBManager.GetConnection()
	if _, err := users.FindByEmail(db, email); err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	var newPassword string
	if len(args) >= 2 {
		newPassword = args[1]
	} else {
		pwd1, err := readPassword("Enter new password: ")
		if err != nil {
			return err
		}
		pwd2, err := readPassword("Confirm new password: ")
		if err != nil {
			return err
		}
		if pwd1 != pwd2 {
			return fmt.Errorf("passwords do not match")
		}
		newPassword = pwd1
	}

	if newPassword == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if err := users.ChangePassword(db, email, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	pterm.Success.Println("Password updated successfully")
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// StatusCommand shows database and pipeline state
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	var userCount int64
	if err := db.Model(&users.User{}).Count(&userCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	rawCount, err := app.Components.RawLogs.Count(ctx)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	current, err := app.Components.Settings.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()

	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Check", "Value"},
		{"Database", "Connected"},
		{"Cache backend", app.Components.Config.CacheBackend},
		{"Users", strconv.FormatInt(userCount, 10)},
		{"Raw log entries", strconv.FormatInt(rawCount, 10)},
		{"Strict mode", strconv.FormatBool(current.StrictMode)},
		{"Respect DNT/GPC", strconv.FormatBool(current.RespectDNTGPC)},
		{"Raw log retention (days)", strconv.Itoa(current.RawLogsRetentionDays)},
		{"Open connections", strconv.Itoa(stats.OpenConnections)},
		{"In use", strconv.Itoa(stats.InUse)},
		{"Idle", strconv.Itoa(stats.Idle)},
	}).Render()
}

// ReportCommand prints the KPIs and top lists for a day range
type ReportCommand struct{}

func (c *ReportCommand) Name() string { return "report" }

func (c *ReportCommand) Description() string {
	return "Prints the analytics overview: [start end] as YYYY-MM-DD, defaults to the last 30 days"
}

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var start, end string
	if len(args) >= 2 {
		start, end = args[0], args[1]
	}

	r := app.Components.Ranges.ResolveDayRange(start, end)
	overview, err := app.Components.Analytics.Overview(ctx, r, timeframe.DefaultLimit)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	pterm.DefaultSection.Printf("Report %s to %s", overview.Range.Start, overview.Range.End)

	if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Total hits", "Unique pages", "Unique referrers"},
		{
			strconv.FormatInt(overview.KPIs.TotalHits, 10),
			strconv.FormatInt(overview.KPIs.UniquePages, 10),
			strconv.FormatInt(overview.KPIs.UniqueReferrers, 10),
		},
	}).Render(); err != nil {
		return err
	}

	pages := pterm.TableData{{"Page", "Hits"}}
	for _, item := range overview.TopPages {
		pages = append(pages, []string{item.Label, strconv.FormatInt(item.Hits, 10)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(pages).Render(); err != nil {
		return err
	}

	refs := pterm.TableData{{"Referrer", "Source", "Category", "Hits"}}
	for _, item := range overview.TopReferrers {
		refs = append(refs, []string{item.Label, item.Source, item.Category, strconv.FormatInt(item.Hits, 10)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(refs).Render(); err != nil {
		return err
	}

	devices := pterm.TableData{{"Device", "Hits"}}
	for _, item := range overview.Devices {
		devices = append(devices, []string{item.Label, strconv.FormatInt(item.Hits, 10)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(devices).Render()
}

// PruneRawLogsCommand deletes raw log entries past the configured retention
type PruneRawLogsCommand struct{}

func (c *PruneRawLogsCommand) Name() string { return "prune-raw-logs" }

func (c *PruneRawLogsCommand) Description() string {
	return "Deletes raw log entries older than the retention setting: [days] overrides it"
}

func (c *PruneRawLogsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	current, err := app.Components.Settings.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	days := current.RawLogsRetentionDays
	if len(args) >= 1 {
		days, err = strconv.Atoi(args[0])
		if err != nil || days < settings.MinRetentionDays {
			return fmt.Errorf("days must be a positive integer")
		}
	}

	deleted, err := app.Components.RawLogs.PruneOlderThan(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to prune raw logs: %w", err)
	}

	pterm.Success.Printf("Deleted %d raw log entries older than %d days\n", deleted, days)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if !term.IsTerminal(int(syscall.Stdin)) {
		input, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && input == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(input), nil
	}

	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: leanctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
