package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ptrckSTL/BoomOrganized/internal/config"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Command-line flags
var (
	recipientCount = flag.Int("recipients", 12, "Number of pending recipients to create")
	scriptText     = flag.String("script", "Hey firstName, the rally starts at 6pm sharp. Bring a friend!", "Message script to store in prefs")
	clearData      = flag.Bool("clear", false, "Clear existing recipients before inserting")
	showHelp       = flag.Bool("help", false, "Show usage information")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== BoomOrganized Database Seeder ===\n")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	// Connect to database (schema is applied on open)
	printInfo("Connecting to database...")
	db, err := repository.Open(cfg.DriverName(), cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer db.Close()
	printSuccess("✓ Connected to database\n")

	ctx := context.Background()
	store := repository.NewRecipientRepository(db)
	prefs := repository.NewPrefsRepository(db)

	// Clear data if requested
	if *clearData {
		printWarning("Clearing existing recipients...")
		if err := store.Clear(ctx); err != nil {
			printError(fmt.Sprintf("Failed to clear recipients: %v", err))
			os.Exit(1)
		}
		printSuccess("✓ Recipients cleared\n")
	}

	// Seed recipients
	created, err := seedRecipients(ctx, store, *recipientCount)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed recipients: %v", err))
		os.Exit(1)
	}

	// Store the sample script so a cold start offers to resume with it
	if err := prefs.Set(ctx, repository.PrefScript, *scriptText); err != nil {
		printError(fmt.Sprintf("Failed to store script: %v", err))
		os.Exit(1)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		printError(fmt.Sprintf("Failed to count recipients: %v", err))
		os.Exit(1)
	}

	// Print summary
	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Recipients created: %d", created))
	printSuccess(fmt.Sprintf("✓ Pending total: %d", counts.Pending))
	printInfo("\nSeeding completed successfully!")
}

// seedRecipients inserts pending recipients with varied name coverage
func seedRecipients(ctx context.Context, store repository.RecipientStore, count int) (int, error) {
	printInfo(fmt.Sprintf("Seeding %d recipients...", count))

	firstNames := []string{"Michael", "Sophia", "James", "Olivia", "Daniel", "Emma", "Benjamin", "Ava", "Lucas", "Mia", "Noah", "Isabella", "William", "Charlotte", "Alexander"}
	lastNames := []string{"Ramirez", "Chen", "Okafor", "Sullivan", "Park", "Nguyen", "Brooks", "Silva", "Hassan", "Kowalski", "Reyes", "Tanaka", "Dubois", "Moreno", "Ali"}

	created := 0
	for i := 1; i <= count; i++ {
		phone := fmt.Sprintf("+1555010%04d", i)

		// Varied data with some missing names, like a real spreadsheet
		var firstName, lastName *string
		if i%10 != 1 { // 90% have first name
			firstName = stringPtr(firstNames[i%len(firstNames)])
		}
		if i%3 != 0 { // 66% have last name
			lastName = stringPtr(lastNames[i%len(lastNames)])
		}

		r := models.NewRecipient(phone, firstName, lastName)
		if err := store.Upsert(ctx, r); err != nil {
			return created, fmt.Errorf("failed to insert recipient %s: %w", phone, err)
		}
		created++
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d recipients", created))
	return created, nil
}

func stringPtr(s string) *string {
	return &s
}

func printUsage() {
	fmt.Println("Usage: go run scripts/seed.go [flags]")
	fmt.Println()
	flag.PrintDefaults()
}

func printInfo(msg string)    { fmt.Println(colorCyan + msg + colorReset) }
func printSuccess(msg string) { fmt.Println(colorGreen + msg + colorReset) }
func printWarning(msg string) { fmt.Println(colorYellow + msg + colorReset) }
func printError(msg string)   { fmt.Println(colorRed + msg + colorReset) }
