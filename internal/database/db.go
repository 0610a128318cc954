package database

import (
    "context"
    "database/sql"
    _ "embed"
    "fmt"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
    cfg := mysql.NewConfig()
    cfg.User = user
    cfg.Passwd = pass
    cfg.Net = "tcp"
    cfg.Addr = host + ":" + port
    cfg.DBName = name
    // parseTime=true -> DATETIME -> time.Time | loc=UTC keeps credit decay consistent
    cfg.ParseTime = true
    cfg.Loc = time.UTC
    cfg.Params = map[string]string{"charset": "utf8mb4"}

    db, err := sql.Open("mysql", cfg.FormatDSN())
    if err != nil {
        return nil, err
    }

    // Pool settings
    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(30 * time.Minute)

    // Ping with timeout
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return db, nil
}

//go:embed schema.sql
var schema string

// Statements splits the bundled schema into executable statements.
func Statements() []string {
    var out []string
    for _, stmt := range strings.Split(schema, ";") {
        var lines []string
        for _, l := range strings.Split(stmt, "\n") {
            if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "--") {
                lines = append(lines, l)
            }
        }
        if len(lines) > 0 {
            out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
        }
    }
    return out
}

// EnsureSchema creates the tables this service owns when they are missing.
// Tables owned by other services (profiles, listings, media, reviews) are
// only described in schema.sql comments.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
    for _, stmt := range Statements() {
        if _, err := db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("apply schema: %w", err)
        }
    }
    return nil
}
