package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db, "sqlite")

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromGorm(newTestDB(t), "sqlite")
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", client.Driver())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	if !IsUniqueViolation(pgErr, "users_username_key") {
		t.Fatalf("expected pgconn unique violation to match constraint")
	}
	if IsUniqueViolation(pgErr, "other_key") {
		t.Fatalf("constraint mismatch should not match")
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "games_name_key"}
	if !IsUniqueViolation(pqErr, "") {
		t.Fatalf("expected pq unique violation")
	}

	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatalf("unrelated error should not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error should not match")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	pgErr := fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503", ConstraintName: "orders_game_id_fkey"})
	if !IsForeignKeyViolation(pgErr) {
		t.Fatalf("expected pgconn foreign key violation")
	}
	if !IsForeignKeyViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("expected pq foreign key violation")
	}
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")) {
		t.Fatalf("expected sqlite foreign key violation")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation should not match")
	}
	if IsForeignKeyViolation(nil) {
		t.Fatalf("nil error should not match")
	}
}
