package repository

import (
    "context"
    "errors"
    "regexp"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
)

func TestActiveLocationsSorted(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    repo := NewLocationRepo(db)

    mock.ExpectQuery(regexp.QuoteMeta(`WHERE is_active = TRUE`) + `\s+` + regexp.QuoteMeta(`ORDER BY country, state, city`)).
        WillReturnRows(sqlmock.NewRows([]string{"id", "city", "state", "country"}).
            AddRow("loc-1", "Ottawa", "ON", "CA").
            AddRow("loc-2", "Toronto", "ON", "CA"))

    got, err := repo.Active(context.Background())
    if err != nil {
        t.Fatalf("Active: %v", err)
    }
    if len(got) != 2 || got[0].City != "Ottawa" || got[1].ID != "loc-2" {
        t.Fatalf("unexpected locations: %#v", got)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestActiveLocationsPassesQueryError(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()

    boom := errors.New("boom")
    mock.ExpectQuery(`FROM locations`).WillReturnError(boom)
    if _, err := NewLocationRepo(db).Active(context.Background()); !errors.Is(err, boom) {
        t.Fatalf("expected query error, got %v", err)
    }
}
