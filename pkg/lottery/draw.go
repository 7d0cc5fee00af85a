package lottery

import "github.com/MarkoPoloResearchLab/haus/pkg/seeded"

const seedPrefix = "LOTTO"

// PickWinner selects one ticket uniformly from tickets using seed, so each account wins with
// probability proportional to the tickets it holds. tickets must be non-empty and in a stable order.
func PickWinner(seed string, tickets []Ticket) Ticket {
	return tickets[seeded.Source(seed).Intn(len(tickets))]
}
