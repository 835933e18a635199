package ledger

import "fmt"

// RebuildPools replays an event history into pool totals. Used by
// reconciliation to verify that stored pools match the movement log.
func RebuildPools(events []*Event) (Pools, error) {
	var p Pools
	for _, e := range events {
		switch e.Type {
		case EventFee:
			p.Treasury += e.Amount
		case EventFeeRefund:
			p.Treasury -= e.Amount
		case EventEscrowLock:
			p.Escrowed += e.Amount
		case EventEscrowRelease, EventEscrowRefund:
			p.Escrowed -= e.Amount
		case EventEscrowTip, EventEscrowForfeit:
			p.Escrowed -= e.Amount
			p.Treasury += e.Amount
		case EventGratuity:
			// direct credit, no pool movement
		case EventGratuityTip:
			p.Treasury += e.Amount
		default:
			return Pools{}, fmt.Errorf("unknown event type %q (event %d)", e.Type, e.ID)
		}
		if p.Escrowed < 0 {
			return Pools{}, fmt.Errorf("escrow pool went negative at event %d", e.ID)
		}
	}
	return p, nil
}

// RebuildBalance replays an event history into the payout balance of a
// single address.
func RebuildBalance(events []*Event, account string) int64 {
	var bal int64
	for _, e := range events {
		if e.Account != account {
			continue
		}
		switch e.Type {
		case EventEscrowRelease, EventEscrowRefund, EventGratuity, EventFeeRefund:
			bal += e.Amount
		}
	}
	return bal
}
