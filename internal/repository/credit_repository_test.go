package repository

import (
    "context"
    "errors"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

var created = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*CreditRepo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    t.Cleanup(func() { db.Close() })
    return NewCreditRepo(db), mock
}

func creditRows() *sqlmock.Rows {
    return sqlmock.NewRows([]string{"id", "profile_id", "city_id", "seconds_granted", "seconds_used", "reason", "created_at"})
}

func TestCreateGrantWritesBothRowsInOneTx(t *testing.T) {
    repo, mock := newMock(t)
    city := "toronto"
    g := &model.CreditGrant{ID: "c1", ProviderID: "p1", CityID: &city, SecondsGranted: 60, Reason: "promo", CreatedAt: created}
    e := &model.CreditAuditEntry{ID: "a1", ProviderID: "p1", CityID: &city, ActorID: "admin", Action: "grant",
        SecondsDelta: 60, Reason: "promo", Metadata: map[string]any{"source": "admin_panel"}, CreatedAt: created}

    mock.ExpectBegin()
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO featured_credits`)).
        WithArgs("c1", "p1", "toronto", int64(60), int64(0), "promo", created).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO featured_credit_audit_logs`)).
        WithArgs("a1", "p1", "toronto", "admin", "grant", int64(60), "promo", []byte(`{"source":"admin_panel"}`), created).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    if err := repo.CreateGrant(context.Background(), g, e); err != nil {
        t.Fatalf("CreateGrant: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestCreateGrantRollsBackWhenAuditFails(t *testing.T) {
    repo, mock := newMock(t)
    g := &model.CreditGrant{ID: "c1", ProviderID: "p1", SecondsGranted: 60, CreatedAt: created}
    e := &model.CreditAuditEntry{ID: "a1", ProviderID: "p1", Action: "grant", SecondsDelta: 60, CreatedAt: created}

    mock.ExpectBegin()
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO featured_credits`)).WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO featured_credit_audit_logs`)).WillReturnError(errors.New("disk full"))
    mock.ExpectRollback()

    if err := repo.CreateGrant(context.Background(), g, e); err == nil {
        t.Fatalf("expected error when audit insert fails")
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestRevokeGrantLocksUpdatesAndAudits(t *testing.T) {
    repo, mock := newMock(t)

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(`FROM featured_credits WHERE id = ? FOR UPDATE`)).
        WithArgs("c1").
        WillReturnRows(creditRows().AddRow("c1", "p1", nil, 1000, 0, "promo", created))
    mock.ExpectExec(regexp.QuoteMeta(`UPDATE featured_credits SET seconds_used = seconds_granted WHERE id = ?`)).
        WithArgs("c1").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO featured_credit_audit_logs`)).
        WithArgs("a9", "p1", nil, "admin", "revoke", int64(-500), "cleanup", sqlmock.AnyArg(), sqlmock.AnyArg()).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    var seen model.CreditGrant
    ok, err := repo.RevokeGrant(context.Background(), "c1", func(g model.CreditGrant) model.CreditAuditEntry {
        seen = g
        return model.CreditAuditEntry{ID: "a9", ProviderID: g.ProviderID, ActorID: "admin", Action: "revoke",
            SecondsDelta: -500, Reason: "cleanup", CreatedAt: created.Add(500 * time.Second)}
    })
    if err != nil || !ok {
        t.Fatalf("RevokeGrant = %v, %v", ok, err)
    }
    if seen.SecondsGranted != 1000 || seen.CityID != nil {
        t.Fatalf("plan saw unexpected grant: %#v", seen)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestRevokeGrantAlreadyRevokedIsNoop(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
        WithArgs("c1").
        WillReturnRows(creditRows().AddRow("c1", "p1", nil, 1000, 1000, "promo", created))
    mock.ExpectRollback()

    ok, err := repo.RevokeGrant(context.Background(), "c1", func(model.CreditGrant) model.CreditAuditEntry {
        t.Fatalf("plan must not run for a revoked grant")
        return model.CreditAuditEntry{}
    })
    if err != nil || ok {
        t.Fatalf("RevokeGrant = %v, %v; want false, nil", ok, err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestRevokeGrantNotFound(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs("nope").WillReturnRows(creditRows())
    mock.ExpectRollback()

    _, err := repo.RevokeGrant(context.Background(), "nope", nil)
    if !errors.Is(err, ErrCreditNotFound) || !errors.Is(err, ledger.ErrNotFound) {
        t.Fatalf("expected not found, got %v", err)
    }
}

func TestGrantsForProvidersExpandsIn(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery(regexp.QuoteMeta(`FROM featured_credits WHERE profile_id IN (?, ?)`)).
        WithArgs("p1", "p2").
        WillReturnRows(creditRows().
            AddRow("c1", "p1", "ottawa", 100, 0, "a", created).
            AddRow("c2", "p2", nil, 50, 10, "b", created))

    got, err := repo.GrantsForProviders(context.Background(), []string{"p1", "p2"})
    if err != nil {
        t.Fatalf("GrantsForProviders: %v", err)
    }
    if len(got) != 2 || got[0].CityID == nil || *got[0].CityID != "ottawa" || got[1].CityID != nil || got[1].SecondsUsed != 10 {
        t.Fatalf("unexpected grants: %#v", got)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet SQL expectations: %v", err)
    }
}

func TestGrantsForProvidersEmptySkipsQuery(t *testing.T) {
    repo, mock := newMock(t)
    got, err := repo.GrantsForProviders(context.Background(), nil)
    if err != nil || len(got) != 0 {
        t.Fatalf("unexpected result %v, %v", got, err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unexpected SQL: %v", err)
    }
}

func TestAuditForProviderDecodesMetadata(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery(regexp.QuoteMeta(`FROM featured_credit_audit_logs`)).
        WithArgs("p1", 50).
        WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "city_id", "actor_user_id", "action",
            "seconds_delta", "reason", "metadata", "created_at"}).
            AddRow("a2", "p1", nil, "admin", "revoke", -20, "r", []byte(`{"credit_id":"c1"}`), created))

    got, err := repo.AuditForProvider(context.Background(), "p1", 50)
    if err != nil {
        t.Fatalf("AuditForProvider: %v", err)
    }
    if len(got) != 1 || got[0].Metadata["credit_id"] != "c1" || got[0].SecondsDelta != -20 {
        t.Fatalf("unexpected audit: %#v", got)
    }
}
