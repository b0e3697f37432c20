// Command migrate применяет и откатывает миграции схемы заказов в PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// errSchemaBehind: в базе применены не все миграции, встроенные в бинарник.
var errSchemaBehind = errors.New("schema is behind the binary")

type command struct {
	direction      string
	steps          int
	dsn            string
	timeout        time.Duration
	requireCurrent bool
}

// migrator: операции со схемой, которые нужны команде.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
}

var _ migrator = (*postgres.Store)(nil)

func main() {
	// .env необязателен: в контейнере DSN приходит из окружения.
	_ = godotenv.Load()

	cmd, err := parseCommand(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()

	store, err := postgres.Open(ctx, cmd.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	line, err := execute(ctx, cmd, store)
	if line != "" {
		fmt.Println(line)
	}
	if err != nil {
		fail("%v", err)
	}
}

func parseCommand(args []string, getenv func(string) string, output io.Writer) (command, error) {
	var cmd command

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cmd.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&cmd.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&cmd.dsn, "dsn", "", "PostgreSQL DSN (fallback: OMS_POSTGRES_DSN)")
	fs.DurationVar(&cmd.timeout, "timeout", defaultTimeout, "overall migration timeout")
	fs.BoolVar(&cmd.requireCurrent, "require-current", false, "with status: exit non-zero when migrations are pending")
	if err := fs.Parse(args); err != nil {
		return command{}, err
	}

	cmd.direction = strings.ToLower(strings.TrimSpace(cmd.direction))
	cmd.dsn = strings.TrimSpace(cmd.dsn)
	if cmd.dsn == "" {
		cmd.dsn = strings.TrimSpace(getenv("OMS_POSTGRES_DSN"))
	}

	switch {
	case cmd.direction != "up" && cmd.direction != "down" && cmd.direction != "status":
		return command{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", cmd.direction)
	case cmd.dsn == "":
		return command{}, errors.New("OMS_POSTGRES_DSN (or -dsn) is required")
	case cmd.steps < 0:
		return command{}, errors.New("steps must be >= 0")
	case cmd.timeout <= 0:
		return command{}, errors.New("timeout must be > 0")
	}
	if cmd.direction == "down" && cmd.steps == 0 {
		cmd.steps = 1
	}
	return cmd, nil
}

// execute выполняет команду и возвращает строку отчёта о состоянии схемы.
func execute(ctx context.Context, cmd command, m migrator) (string, error) {
	prefix := "migration status"
	switch cmd.direction {
	case "up":
		if err := m.MigrateUp(ctx, cmd.steps); err != nil {
			return "", fmt.Errorf("migrate up failed: %w", err)
		}
		prefix = "migrate up ok"
	case "down":
		if err := m.MigrateDown(ctx, cmd.steps); err != nil {
			return "", fmt.Errorf("migrate down failed: %w", err)
		}
		prefix = "migrate down ok"
	}

	state, err := m.MigrationStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("migration status failed: %w", err)
	}
	line := formatState(prefix, state)
	if cmd.direction == "status" && cmd.requireCurrent && state.Pending() > 0 {
		return line, fmt.Errorf("%w: %d pending", errSchemaBehind, state.Pending())
	}
	return line, nil
}

func formatState(prefix string, state postgres.MigrationState) string {
	return fmt.Sprintf("%s: version=%d applied=%d/%d pending=%d", prefix, state.Version, state.Applied, state.Available, state.Pending())
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
