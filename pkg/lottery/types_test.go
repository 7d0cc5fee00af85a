package lottery

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

const mondayMorningUnixUTC int64 = 1736150400

func TestParsePeriod(test *testing.T) {
	test.Parallel()
	for _, valid := range []string{"2025-01", " 2025-52 ", "2026-53"} {
		if _, err := ParsePeriod(valid); err != nil {
			test.Fatalf("expected %q to parse: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "2025-00", "2025-54", "2025-1", "25-01", "2025/01"} {
		if _, err := ParsePeriod(invalid); !errors.Is(err, ErrInvalidPeriod) {
			test.Fatalf("expected ErrInvalidPeriod for %q, got %v", invalid, err)
		}
	}
}

func TestNextDraw(test *testing.T) {
	test.Parallel()
	config := DefaultConfig()
	saturdayEvening := time.Date(2025, time.January, 11, 20, 0, 0, 0, config.Location).Unix()
	testCases := []struct {
		name     string
		at       int64
		expected int64
	}{
		{name: "monday", at: mondayMorningUnixUTC, expected: saturdayEvening},
		{name: "saturday before draw", at: saturdayEvening - 3600, expected: saturdayEvening},
		{name: "at draw time", at: saturdayEvening, expected: saturdayEvening + 7*24*3600},
		{name: "sunday", at: saturdayEvening + 24*3600, expected: saturdayEvening + 7*24*3600},
	}
	for _, testCase := range testCases {
		if got := config.NextDraw(testCase.at); got != testCase.expected {
			test.Fatalf("%s: expected %d, got %d", testCase.name, testCase.expected, got)
		}
	}
}

func TestPickWinnerIsProportional(test *testing.T) {
	test.Parallel()
	heavy, _ := ledger.NewAccountID("heavy")
	light, _ := ledger.NewAccountID("light")
	tickets := make([]Ticket, 0, 10)
	for index := 0; index < 9; index++ {
		tickets = append(tickets, Ticket{ID: fmt.Sprintf("t%02d", index), AccountID: heavy})
	}
	tickets = append(tickets, Ticket{ID: "t09", AccountID: light})

	const draws = 10_000
	heavyWins := 0
	for draw := 0; draw < draws; draw++ {
		if PickWinner(fmt.Sprintf("LOTTO-2025-02-%d-%d", mondayMorningUnixUTC, draw), tickets).AccountID == heavy {
			heavyWins++
		}
	}
	if heavyWins < 8_500 || heavyWins > 9_500 {
		test.Fatalf("expected about 90%% heavy wins, got %d of %d", heavyWins, draws)
	}
}

func TestPickWinnerIsReproducible(test *testing.T) {
	test.Parallel()
	tickets := []Ticket{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	if PickWinner("LOTTO-seed", tickets) != PickWinner("LOTTO-seed", tickets) {
		test.Fatalf("expected the same winner for the same seed")
	}
}

func TestConfigValidate(test *testing.T) {
	test.Parallel()
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		test.Fatalf("default config invalid: %v", err)
	}
	config.DrawHour = 24
	if !errors.Is(config.Validate(), ErrInvalidConfig) {
		test.Fatalf("expected ErrInvalidConfig for hour 24")
	}
}
