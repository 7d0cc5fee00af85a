package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"gorm.io/gorm"
)

const ticketBatchSize = 100

// LotteryStore implements lottery.Store.
type LotteryStore struct {
	*Store
}

// Lottery returns the lottery view of the store.
func (store *Store) Lottery() *LotteryStore {
	return &LotteryStore{Store: store}
}

// WithTx executes fn within a transaction.
func (lotteryStore *LotteryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore lottery.Store) error) error {
	return lotteryStore.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LotteryStore{Store: &Store{db: transaction}})
	})
}

// Ledger returns the wallet view over the same connection or transaction.
func (lotteryStore *LotteryStore) Ledger() ledger.Store {
	return lotteryStore.Store
}

func (store *Store) InsertTickets(ctx context.Context, tickets []lottery.Ticket) ([]lottery.Ticket, error) {
	if len(tickets) == 0 {
		return nil, nil
	}
	records := make([]Ticket, len(tickets))
	for index, ticket := range tickets {
		records[index] = Ticket{
			TicketID:         ticket.ID,
			Period:           ticket.Period,
			AccountID:        ticket.AccountID.String(),
			PurchasedUnixUTC: ticket.PurchasedUnixUTC,
		}
	}
	if err := store.db.WithContext(ctx).CreateInBatches(&records, ticketBatchSize).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTicket, errorCodeInsert, err)
	}
	recorded := make([]lottery.Ticket, len(tickets))
	for index, ticket := range tickets {
		ticket.ID = records[index].TicketID
		recorded[index] = ticket
	}
	return recorded, nil
}

func (store *Store) ListTickets(ctx context.Context, period string) ([]lottery.Ticket, error) {
	var rows []Ticket
	err := store.db.WithContext(ctx).
		Where("period = ?", period).
		Order("ticket_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTicket, errorCodeList, err)
	}
	tickets := make([]lottery.Ticket, 0, len(rows))
	for _, row := range rows {
		accountID, err := ledger.NewAccountID(row.AccountID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTicket, errorCodeInvalid, err)
		}
		tickets = append(tickets, lottery.Ticket{
			ID:               row.TicketID,
			Period:           row.Period,
			AccountID:        accountID,
			PurchasedUnixUTC: row.PurchasedUnixUTC,
		})
	}
	return tickets, nil
}

func (store *Store) CountTickets(ctx context.Context, period string) (int64, error) {
	var count int64
	if err := store.db.WithContext(ctx).Model(&Ticket{}).Where("period = ?", period).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectTicket, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) CountAccountTickets(ctx context.Context, period string, accountID ledger.AccountID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Ticket{}).
		Where("period = ? AND account_id = ?", period, accountID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTicket, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) GetDraw(ctx context.Context, period string) (lottery.Draw, error) {
	var record Draw
	err := store.db.WithContext(ctx).Where("period = ?", period).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lottery.Draw{}, wrapStoreError(errorSubjectDraw, errorCodeGet, lottery.ErrNoDraw)
	}
	if err != nil {
		return lottery.Draw{}, wrapStoreError(errorSubjectDraw, errorCodeGet, err)
	}
	return mapDraw(record)
}

func (store *Store) InsertDraw(ctx context.Context, draw lottery.Draw) (lottery.Draw, error) {
	record := Draw{
		DrawID:          draw.ID,
		Period:          draw.Period,
		WinnerAccountID: draw.WinnerAccountID.String(),
		TicketID:        draw.TicketID,
		TicketCount:     draw.TicketCount,
		Seed:            draw.Seed,
		Status:          string(draw.Status),
		PrizeID:         draw.PrizeID,
		RunUnixUTC:      draw.RunUnixUTC,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return lottery.Draw{}, wrapStoreError(errorSubjectDraw, errorCodeDuplicate, lottery.ErrAlreadyDrawn)
	}
	if err != nil {
		return lottery.Draw{}, wrapStoreError(errorSubjectDraw, errorCodeInsert, err)
	}
	draw.ID = record.DrawID
	return draw, nil
}

func mapDraw(record Draw) (lottery.Draw, error) {
	winner, err := ledger.NewAccountID(record.WinnerAccountID)
	if err != nil {
		return lottery.Draw{}, wrapStoreError(errorSubjectDraw, errorCodeInvalid, err)
	}
	if lottery.DrawStatus(record.Status) != lottery.DrawDone {
		return lottery.Draw{}, invalidRecord(errorSubjectDraw, "status", record.Status)
	}
	return lottery.Draw{
		ID:              record.DrawID,
		Period:          record.Period,
		WinnerAccountID: winner,
		TicketID:        record.TicketID,
		TicketCount:     record.TicketCount,
		Seed:            record.Seed,
		Status:          lottery.DrawDone,
		PrizeID:         record.PrizeID,
		RunUnixUTC:      record.RunUnixUTC,
	}, nil
}
