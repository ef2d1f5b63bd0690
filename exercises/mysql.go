package exercises

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type DBConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN renders the driver connection string.
func (c DBConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.Timeout = 5 * time.Second

	return cfg.FormatDSN()
}

// MySQLStore works against MySQL and MariaDB alike.
type MySQLStore struct {
	db *sql.DB
}

func OpenMySQL(c DBConfig) (*MySQLStore, error) {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MySQLStore{db: db}, nil
}

func updateQuery(n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")

	return "UPDATE exercises_table SET enabled = 1, status = 1, user_selection = 1 WHERE exercises IN (" + placeholders + ")"
}

func (s *MySQLStore) Enable(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, ErrorNoExercises
	}

	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	res, err := s.db.ExecContext(ctx, updateQuery(len(names)), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
