package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/efreitasn/venue/internal/domain"
	"pgregory.net/rapid"
)

// bookState fingerprints every queue of the book plus the market price
// and the book's sequence counter.
func bookState(sec *Security) string {
	var sb strings.Builder
	write := func(o *domain.Order) bool {
		fmt.Fprintf(&sb, "%d:%d:%d:%d:%s ", o.OrderID, o.Quantity, o.DisplayedQuantity, o.Sequence, o.Status)
		return true
	}
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		sb.WriteString(string(side) + "[")
		sec.book.Walk(side, write)
		sb.WriteString("] stop[")
		sec.book.WalkStops(side, write)
		sb.WriteString("] ")
	}
	fmt.Fprintf(&sb, "market=%d seq=%d", sec.marketPrice, sec.book.sequence)
	return sb.String()
}

// drawOrder draws a limit or iceberg order around a narrow price band so
// that drawn books cross often.
func drawOrder(t *rapid.T, id int64, b *domain.Broker, sh *domain.Shareholder) *domain.Order {
	label := fmt.Sprintf("-%d", id)
	side := rapid.SampledFrom([]domain.Side{domain.SideBuy, domain.SideSell}).Draw(t, "side"+label)
	qty := rapid.Int64Range(1, 50).Draw(t, "qty"+label)
	price := rapid.Int64Range(95, 105).Draw(t, "price"+label)
	if rapid.Bool().Draw(t, "iceberg"+label) && qty > 1 {
		peak := rapid.Int64Range(1, qty-1).Draw(t, "peak"+label)
		return domain.NewIcebergOrder(id, testISIN, side, qty, price, b, sh, 0, peak)
	}
	return domain.NewLimitOrder(id, testISIN, side, qty, price, b, sh, 0)
}

// queuedBuyValue sums the value of every resting buy, which is what the
// book holds in reserved credit.
func queuedBuyValue(sec *Security) int64 {
	var total int64
	sec.book.Walk(domain.SideBuy, func(o *domain.Order) bool {
		total += o.Value()
		return true
	})
	return total
}

// Property: every accepted order is either traded or queued, unit for unit.

func TestProperty_QuantityConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		b := domain.NewBroker(1, 1_000_000_000)
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})

		n := rapid.IntRange(1, 40).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			order := drawOrder(t, int64(i), b, sh)
			initial := order.Quantity
			result := sec.NewOrder(order)
			if result.Outcome != domain.OutcomeOK {
				t.Fatalf("order %d: outcome %s", i, result.Outcome)
			}
			var traded int64
			for _, tr := range result.Trades {
				if tr.Quantity <= 0 {
					t.Fatalf("order %d: trade of %d", i, tr.Quantity)
				}
				traded += tr.Quantity
			}
			if traded+result.Remainder.Quantity != initial {
				t.Fatalf("order %d: traded %d + remainder %d != %d", i, traded, result.Remainder.Quantity, initial)
			}
			if result.Remainder.Quantity > 0 && sec.book.FindByOrderID(order.Side, order.OrderID) == nil {
				t.Fatalf("order %d: remainder not queued", i)
			}
		}

		// The book never rests crossed.
		bid, ask := sec.book.Head(domain.SideBuy), sec.book.Head(domain.SideSell)
		if bid != nil && ask != nil && bid.Price >= ask.Price {
			t.Fatalf("crossed book: bid %d ask %d", bid.Price, ask.Price)
		}
	})
}

// Property: credit is conserved across brokers once resting buy
// reservations are counted.

func TestProperty_CreditConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		brokers := []*domain.Broker{domain.NewBroker(1, 500_000), domain.NewBroker(2, 500_000)}
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})
		const total = 1_000_000

		n := rapid.IntRange(1, 40).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			b := rapid.SampledFrom(brokers).Draw(t, fmt.Sprintf("broker-%d", i))
			sec.NewOrder(drawOrder(t, int64(i), b, sh))

			sum := queuedBuyValue(sec)
			for _, br := range brokers {
				if br.Credit() < 0 {
					t.Fatalf("broker %d credit went negative: %d", br.BrokerID, br.Credit())
				}
				sum += br.Credit()
			}
			if sum != total {
				t.Fatalf("after order %d: credit plus reservations = %d, want %d", i, sum, total)
			}
		}
	})
}

// Property: a rejected order leaves no trace in the book, the credit
// ledgers, the positions or the market price.

func TestProperty_RejectionRollsBackExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		b := domain.NewBroker(1, 1_000_000_000)
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})

		n := rapid.IntRange(1, 30).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			sec.NewOrder(drawOrder(t, int64(i), b, sh))
		}

		before := bookState(sec)
		credit := b.Credit()
		position := sh.Position(testISIN)

		// Demand more than the whole book can fill so the minimum
		// execution check always fails after matching.
		side := rapid.SampledFrom([]domain.Side{domain.SideBuy, domain.SideSell}).Draw(t, "side")
		price := int64(1)
		if side == domain.SideBuy {
			price = 1000
		}
		const qty = 100_000
		order := domain.NewLimitOrder(int64(n+1), testISIN, side, qty, price, b, sh, qty)
		result := sec.NewOrder(order)

		if result.Outcome != domain.OutcomeMinimumQuantityNotSatisfied {
			t.Fatalf("outcome = %s, want MINIMUM_QUANTITY_NOT_SATISFIED", result.Outcome)
		}
		if after := bookState(sec); after != before {
			t.Fatalf("book changed:\nbefore %s\nafter  %s", before, after)
		}
		if b.Credit() != credit {
			t.Fatalf("credit = %d, want %d", b.Credit(), credit)
		}
		if sh.Position(testISIN) != position {
			t.Fatalf("position = %d, want %d", sh.Position(testISIN), position)
		}
		if order.Quantity != qty {
			t.Fatalf("rejected order quantity = %d, want %d", order.Quantity, qty)
		}
	})
}

// Property: an opening auction executes every trade at the opening price
// and leaves the book uncrossed.

func TestProperty_AuctionClearsAtOpeningPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		b := domain.NewBroker(1, 1_000_000_000)
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})
		sec.SetMarketPrice(rapid.Int64Range(95, 105).Draw(t, "market"))
		sec.ChangeMatchingState(domain.StateAuction)

		n := rapid.IntRange(1, 30).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			sec.NewOrder(drawOrder(t, int64(i), b, sh))
		}
		price := sec.OpeningPrice()
		tradable := sec.TradableQuantity()

		trades := sec.ChangeMatchingState(domain.StateContinuous)

		var traded int64
		for _, tr := range trades {
			if tr.Price != price {
				t.Fatalf("trade at %d, opening price %d", tr.Price, price)
			}
			traded += tr.Quantity
		}
		if traded != tradable {
			t.Fatalf("traded %d, tradable quantity was %d", traded, tradable)
		}
		bid, ask := sec.book.Head(domain.SideBuy), sec.book.Head(domain.SideSell)
		if bid != nil && ask != nil && bid.Price >= ask.Price {
			t.Fatalf("crossed book after opening: bid %d ask %d", bid.Price, ask.Price)
		}
	})
}

// drawSell draws a plain or iceberg sell order between 95 and 105.
func drawSell(t *rapid.T, id int64, b *domain.Broker, sh *domain.Shareholder) *domain.Order {
	label := fmt.Sprintf("-%d", id)
	qty := rapid.Int64Range(2, 40).Draw(t, "qty"+label)
	price := rapid.Int64Range(95, 105).Draw(t, "price"+label)
	if rapid.Bool().Draw(t, "iceberg"+label) {
		peak := rapid.Int64Range(1, qty-1).Draw(t, "peak"+label)
		return domain.NewIcebergOrder(id, testISIN, domain.SideSell, qty, price, b, sh, 0, peak)
	}
	return domain.NewLimitOrder(id, testISIN, domain.SideSell, qty, price, b, sh, 0)
}

// Property: a buy that runs out of credit part way through a sweep
// leaves the book, the sequence counter, every broker's credit and every
// position as they were, even after icebergs were replenished during
// the sweep.

func TestProperty_CreditRejectionMidSweepRollsBackExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		sellers := []*domain.Broker{domain.NewBroker(1, 0), domain.NewBroker(2, 500), domain.NewBroker(3, 1_000)}
		sellerSh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})
		buyerSh := domain.NewShareholder(2, nil)

		// The first order is an iceberg at the best price so the sweep
		// always replenishes it before credit runs out.
		peak := rapid.Int64Range(1, 10).Draw(t, "peak")
		iceberg := domain.NewIcebergOrder(1, testISIN, domain.SideSell, peak+rapid.Int64Range(1, 30).Draw(t, "hidden"), 95, sellers[0], sellerSh, 0, peak)
		sec.NewOrder(iceberg)

		total := iceberg.Quantity
		cost := iceberg.Value()
		n := rapid.IntRange(1, 20).Draw(t, "numOrders")
		for i := 2; i <= n+1; i++ {
			b := rapid.SampledFrom(sellers).Draw(t, fmt.Sprintf("seller-%d", i))
			o := drawSell(t, int64(i), b, sellerSh)
			total += o.Quantity
			cost += o.Value()
			if r := sec.NewOrder(o); r.Outcome != domain.OutcomeOK {
				t.Fatalf("sell %d: outcome %s", i, r.Outcome)
			}
		}

		buyerCredit := rapid.Int64Range(95*peak, cost-1).Draw(t, "buyerCredit")
		buyer := domain.NewBroker(4, buyerCredit)
		brokers := append(sellers, buyer)

		before := bookState(sec)
		credits := make([]int64, len(brokers))
		for i, b := range brokers {
			credits[i] = b.Credit()
		}

		order := domain.NewLimitOrder(int64(n+2), testISIN, domain.SideBuy, total, 1000, buyer, buyerSh, 0)
		result := sec.NewOrder(order)

		if result.Outcome != domain.OutcomeNotEnoughCredit {
			t.Fatalf("outcome = %s, want NOT_ENOUGH_CREDIT", result.Outcome)
		}
		if after := bookState(sec); after != before {
			t.Fatalf("book changed:\nbefore %s\nafter  %s", before, after)
		}
		for i, b := range brokers {
			if b.Credit() != credits[i] {
				t.Fatalf("broker %d credit = %d, want %d", b.BrokerID, b.Credit(), credits[i])
			}
		}
		if got := sellerSh.Position(testISIN); got != 1_000_000 {
			t.Fatalf("seller position = %d, want 1000000", got)
		}
		if got := buyerSh.Position(testISIN); got != 0 {
			t.Fatalf("buyer position = %d, want 0", got)
		}
		if order.Quantity != total {
			t.Fatalf("rejected order quantity = %d, want %d", order.Quantity, total)
		}
	})
}

// Property: computing the opening price is a pure read. Repeated calls
// agree and leave the book untouched.

func TestProperty_OpeningPriceIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		b := domain.NewBroker(1, 1_000_000_000)
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})
		sec.SetMarketPrice(rapid.Int64Range(90, 110).Draw(t, "market"))
		sec.ChangeMatchingState(domain.StateAuction)

		n := rapid.IntRange(0, 30).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			sec.NewOrder(drawOrder(t, int64(i), b, sh))
		}

		before := bookState(sec)
		credit := b.Credit()

		price, quantity := sec.OpeningPrice(), sec.TradableQuantity()
		price2, quantity2 := sec.OpeningPrice(), sec.TradableQuantity()

		if price != price2 || quantity != quantity2 {
			t.Fatalf("opening price %d/%d then %d/%d", price, quantity, price2, quantity2)
		}
		if price > 0 && sec.TradableQuantityAt(price) != quantity {
			t.Fatalf("TradableQuantityAt(%d) = %d, want %d", price, sec.TradableQuantityAt(price), quantity)
		}
		if after := bookState(sec); after != before {
			t.Fatalf("book changed:\nbefore %s\nafter  %s", before, after)
		}
		if b.Credit() != credit {
			t.Fatalf("credit = %d, want %d", b.Credit(), credit)
		}
	})
}

// levelEntry is one queue position in the reference model of a price level.
type levelEntry struct {
	id        int64
	quantity  int64
	peak      int64
	displayed int64
}

// Property: at a single price level an iceberg only ever offers its
// displayed slice. Once the slice is consumed the iceberg goes behind
// every order already waiting, so orders behind it are never starved.

func TestProperty_IcebergFairness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const price = 100
		sec := NewSecurity(testISIN, 1, 1, NewMatcher())
		seller := domain.NewBroker(1, 0)
		buyer := domain.NewBroker(2, 1_000_000_000)
		sh := domain.NewShareholder(1, map[string]int64{testISIN: 1_000_000})

		var level []levelEntry
		var total int64
		n := rapid.IntRange(1, 8).Draw(t, "numOrders")
		for i := 1; i <= n; i++ {
			label := fmt.Sprintf("-%d", i)
			qty := rapid.Int64Range(1, 30).Draw(t, "qty"+label)
			var o *domain.Order
			s := levelEntry{id: int64(i), quantity: qty, displayed: qty}
			if qty > 1 && rapid.Bool().Draw(t, "iceberg"+label) {
				s.peak = rapid.Int64Range(1, qty-1).Draw(t, "peak"+label)
				s.displayed = s.peak
				o = domain.NewIcebergOrder(int64(i), testISIN, domain.SideSell, qty, price, seller, sh, 0, s.peak)
			} else {
				o = domain.NewLimitOrder(int64(i), testISIN, domain.SideSell, qty, price, seller, sh, 0)
			}
			sec.NewOrder(o)
			level = append(level, s)
			total += qty
		}

		incoming := rapid.Int64Range(1, total+10).Draw(t, "incoming")

		// Walk the reference model of the level.
		type fill struct{ id, quantity int64 }
		var want []fill
		remaining := incoming
		for remaining > 0 && len(level) > 0 {
			head := &level[0]
			take := min(remaining, head.displayed)
			want = append(want, fill{head.id, take})
			remaining -= take
			head.quantity -= take
			head.displayed -= take
			if head.displayed > 0 {
				break
			}
			next := *head
			level = level[1:]
			if next.peak > 0 && next.quantity > 0 {
				next.displayed = min(next.peak, next.quantity)
				level = append(level, next)
			}
		}

		buy := domain.NewLimitOrder(int64(n+1), testISIN, domain.SideBuy, incoming, price, buyer, domain.NewShareholder(2, nil), 0)
		result := sec.NewOrder(buy)
		if result.Outcome != domain.OutcomeOK {
			t.Fatalf("outcome = %s", result.Outcome)
		}

		var got []fill
		for _, tr := range result.Trades {
			got = append(got, fill{tr.Sell.OrderID, tr.Quantity})
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("fills = %v, want %v", got, want)
		}

		var wantIDs []int64
		for _, s := range level {
			wantIDs = append(wantIDs, s.id)
		}
		if gotIDs := ids(sec.book, domain.SideSell); !equalIDs(gotIDs, wantIDs) {
			t.Fatalf("resting sells = %v, want %v", gotIDs, wantIDs)
		}
	})
}
