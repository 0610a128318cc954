package database

import (
    "context"
    "strings"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
)

func TestStatementsSkipsComments(t *testing.T) {
    stmts := Statements()
    if len(stmts) != 3 {
        t.Fatalf("expected 3 statements, got %d", len(stmts))
    }
    for _, s := range stmts {
        if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
            t.Errorf("unexpected statement start: %.40q", s)
        }
    }
}

func TestEnsureSchemaExecutesEveryStatement(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    for _, table := range []string{"featured_credits", "featured_credit_audit_logs", "referrals"} {
        mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table + " ").WillReturnResult(sqlmock.NewResult(0, 0))
    }
    if err := EnsureSchema(context.Background(), db); err != nil {
        t.Fatalf("EnsureSchema: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}
