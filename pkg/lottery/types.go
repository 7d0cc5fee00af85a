package lottery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
)

// Domain-level error values returned by the lottery.
var (
	ErrNoEntries          = errors.New("no entries")
	ErrAlreadyDrawn       = errors.New("period already drawn")
	ErrNoDraw             = errors.New("period not drawn")
	ErrInvalidTicketCount = errors.New("invalid ticket count")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidConfig      = errors.New("invalid lottery config")
)

// DrawStatus is the state of a recorded draw.
type DrawStatus string

// DrawDone marks a completed draw.
const DrawDone DrawStatus = "DONE"

var periodPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Ticket is one entry in a period's draw.
type Ticket struct {
	ID               string
	Period           string
	AccountID        ledger.AccountID
	PurchasedUnixUTC int64
}

// Draw records the winner of a period.
type Draw struct {
	ID              string
	Period          string
	WinnerAccountID ledger.AccountID
	TicketID        string
	TicketCount     int
	Seed            string
	Status          DrawStatus
	PrizeID         string
	RunUnixUTC      int64
}

// Purchase summarizes a ticket purchase.
type Purchase struct {
	Period  string
	Tickets []Ticket
	Cost    ledger.Coins
	Balance ledger.Coins
}

// Status is the display snapshot of a period.
type Status struct {
	Period          string
	TicketPrice     ledger.Coins
	TotalTickets    int64
	AccountTickets  int64
	Draw            *Draw
	NextDrawUnixUTC int64
}

// Config sets ticket pricing, prize and draw schedule.
type Config struct {
	TicketPrice           ledger.Coins
	MaxTicketsPerPurchase int
	PrizeQuantity         int
	ShopName              string
	ShopURL               string
	DrawWeekday           time.Weekday
	DrawHour              int
	Location              *time.Location
}

// DefaultConfig returns 10000-coin tickets, up to 100 per purchase, 10 gifts to the winner,
// drawn Saturday 20:00 Europe/London.
func DefaultConfig() Config {
	location, err := ledger.LoadLocation("")
	if err != nil {
		location = time.UTC
	}
	return Config{
		TicketPrice:           10_000,
		MaxTicketsPerPurchase: 100,
		PrizeQuantity:         10,
		ShopName:              "Shop YaEli",
		ShopURL:               "https://www.imvu.com/shop/web_search.php?manufacturers_id=360644281",
		DrawWeekday:           time.Saturday,
		DrawHour:              20,
		Location:              location,
	}
}

// Validate checks pricing and schedule.
func (config Config) Validate() error {
	if config.TicketPrice <= 0 {
		return fmt.Errorf("%w: ticket price must be positive", ErrInvalidConfig)
	}
	if config.MaxTicketsPerPurchase < 1 {
		return fmt.Errorf("%w: max tickets must be positive", ErrInvalidConfig)
	}
	if config.PrizeQuantity < 1 {
		return fmt.Errorf("%w: prize quantity must be positive", ErrInvalidConfig)
	}
	if config.DrawHour < 0 || config.DrawHour > 23 {
		return fmt.Errorf("%w: draw hour %d", ErrInvalidConfig, config.DrawHour)
	}
	if config.Location == nil {
		return fmt.Errorf("%w: location is required", ErrInvalidConfig)
	}
	return nil
}

// ParsePeriod validates an ISO week id "YYYY-WW".
func ParsePeriod(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	matches := periodPattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	week, _ := strconv.Atoi(matches[2])
	if week < 1 || week > 53 {
		return "", fmt.Errorf("%w: week %d", ErrInvalidPeriod, week)
	}
	return trimmed, nil
}

// NextDraw returns the first draw time strictly after atUnixUTC.
func (config Config) NextDraw(atUnixUTC int64) int64 {
	local := time.Unix(atUnixUTC, 0).In(config.Location)
	daysAhead := (int(config.DrawWeekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+daysAhead, config.DrawHour, 0, 0, 0, config.Location)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate.Unix()
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Ledger() ledger.Store
	InsertTickets(ctx context.Context, tickets []Ticket) ([]Ticket, error)
	// ListTickets returns a period's tickets in purchase order.
	ListTickets(ctx context.Context, period string) ([]Ticket, error)
	CountTickets(ctx context.Context, period string) (int64, error)
	CountAccountTickets(ctx context.Context, period string, accountID ledger.AccountID) (int64, error)
	// GetDraw fails with ErrNoDraw when the period was not drawn.
	GetDraw(ctx context.Context, period string) (Draw, error)
	// InsertDraw fails with ErrAlreadyDrawn when the period already has a draw.
	InsertDraw(ctx context.Context, draw Draw) (Draw, error)
	CreatePrize(ctx context.Context, prize prizes.Prize) (prizes.Prize, error)
}
