package migrations

import (
	"context"
	"fmt"
	"strings"

	chstore "fee-token-lab/internal/storage/clickhouse"
)

// execer is the part of a ClickHouse connection the migrations use.
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouseMigrations creates the DSN's database if needed, applies the
// embedded SQL files and returns a connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := chstore.DatabaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	migs, err := loadMigrations(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	if cerr := admin.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close admin connection: %w", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := applyClickhouse(ctx, conn, migs); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// applyClickhouse validates every migration before executing any of them,
// then runs their statements one Exec at a time.
func applyClickhouse(ctx context.Context, conn execer, migs []migration) error {
	plan := make([][]string, len(migs))
	for i, m := range migs {
		if err := validateNoSemicolonInStrings(m.sql); err != nil {
			return fmt.Errorf("validate migration %s: %w", m.name, err)
		}
		plan[i] = splitStatements(m.sql)
	}
	for i, m := range migs {
		for _, stmt := range plan[i] {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}

// splitStatements drops "--" lines and splits on ';'. Block comments are
// not understood.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings reports a semicolon inside a single-quoted
// literal, which splitStatements would cut in two.
func validateNoSemicolonInStrings(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch {
		case sql[i] == '\'' && quoted && i+1 < len(sql) && sql[i+1] == '\'':
			i++
		case sql[i] == '\'':
			quoted = !quoted
		case sql[i] == ';' && quoted:
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}
