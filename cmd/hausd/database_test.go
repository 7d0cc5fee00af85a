package main

import (
	"path/filepath"
	"testing"
)

func TestResolveDriver(test *testing.T) {
	test.Parallel()

	directory := test.TempDir()
	testCases := []struct {
		name       string
		dsn        string
		driver     string
		sqlitePath string
	}{
		{name: "postgres", dsn: "postgres://haus@localhost/haus", driver: driverPostgres},
		{name: "postgresql", dsn: "postgresql://haus@localhost/haus", driver: driverPostgres},
		{name: "sqlite absolute", dsn: "sqlite://" + filepath.Join(directory, "data", "haus.db"), driver: driverSQLite, sqlitePath: filepath.Join(directory, "data", "haus.db")},
		{name: "bare path", dsn: filepath.Join(directory, "bare.db"), driver: driverSQLite, sqlitePath: filepath.Join(directory, "bare.db")},
		{name: "memory", dsn: ":memory:", driver: driverSQLite, sqlitePath: ":memory:"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			driver, sqlitePath, err := resolveDriver(testCase.dsn)
			if err != nil {
				test.Fatalf("resolve %q: %v", testCase.dsn, err)
			}
			if driver != testCase.driver || sqlitePath != testCase.sqlitePath {
				test.Fatalf("expected %s %q, got %s %q", testCase.driver, testCase.sqlitePath, driver, sqlitePath)
			}
		})
	}
}
