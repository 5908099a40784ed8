// Package matching implements the price-time-priority continuous double
// auction at the heart of the trading phase: two priority heaps (bids,
// asks) that cross on AddOrder and emit fill records.
package matching

import (
	"container/heap"
	"errors"
	"fmt"
	"strings"
)

// ErrTIDCollision is returned when two crossing orders share a tid, which
// the state machine guarantees never happens (spec.md §4.3 "Failure mode").
var ErrTIDCollision = errors.New("matching: crossing orders share a tid")

// Order is a single resting or incoming order (spec.md §3 "Order book entry").
type Order struct {
	TID        int64
	CustomerID int
	Price      int
	Size       int
	IsBid      bool
}

// Fill is a single trade produced by crossing a resting ("quote") order
// against an incoming ("crossing") order (spec.md §3 "Fill record").
type Fill struct {
	Price       int
	Size        int
	TID         int64 // the crossing order's tid
	QuoteSize   int   // the resting order's size at the moment of this match
	QuoterID    int   // owner of the resting order
	CustomerID  int   // owner of the crossing order
	QuoteTID    int64 // the resting order's tid
	IsSellQuote bool  // true if the resting order was a sell
}

// orderHeap is the shared heap machinery; bidHeap and askHeap differ only
// in Less, to get a max-heap on price for bids and a min-heap for asks.
type orderHeap []Order

func (h orderHeap) Len() int      { return len(h) }
func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *orderHeap) Push(x any)   { *h = append(*h, x.(Order)) }
func (h *orderHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type bidHeap struct{ orderHeap }

func (h bidHeap) Less(i, j int) bool {
	if h.orderHeap[i].Price != h.orderHeap[j].Price {
		return h.orderHeap[i].Price > h.orderHeap[j].Price
	}
	return h.orderHeap[i].TID < h.orderHeap[j].TID
}

type askHeap struct{ orderHeap }

func (h askHeap) Less(i, j int) bool {
	if h.orderHeap[i].Price != h.orderHeap[j].Price {
		return h.orderHeap[i].Price < h.orderHeap[j].Price
	}
	return h.orderHeap[i].TID < h.orderHeap[j].TID
}

// Book holds the two resting-order heaps for a single traded contract.
type Book struct {
	bids bidHeap
	asks askHeap
}

// NewBook returns an empty order book.
func NewBook() *Book {
	return &Book{}
}

// AddOrder pushes o onto its side and repeatedly crosses best bid against
// best ask, returning every fill produced (spec.md §4.3). A zero-size order
// is a no-op. Two crossing orders sharing a tid is a MatchingInvariant
// violation reported via ErrTIDCollision.
func (b *Book) AddOrder(o Order) ([]Fill, error) {
	if o.Size <= 0 {
		return nil, nil
	}
	if o.IsBid {
		heap.Push(&b.bids, o)
	} else {
		heap.Push(&b.asks, o)
	}

	var fills []Fill
	for len(b.bids.orderHeap) > 0 && len(b.asks.orderHeap) > 0 {
		bestBid := b.bids.orderHeap[0]
		bestAsk := b.asks.orderHeap[0]
		if bestBid.Price < bestAsk.Price {
			break
		}

		bid := heap.Pop(&b.bids).(Order)
		ask := heap.Pop(&b.asks).(Order)

		if bid.TID == ask.TID {
			return fills, fmt.Errorf("%w: tid=%d", ErrTIDCollision, bid.TID)
		}

		isSellQuote := bid.TID > ask.TID
		var quote, cross Order
		if isSellQuote {
			quote, cross = ask, bid
		} else {
			quote, cross = bid, ask
		}

		size := bid.Size
		if ask.Size < size {
			size = ask.Size
		}

		fills = append(fills, Fill{
			Price:       quote.Price,
			Size:        size,
			TID:         cross.TID,
			QuoteSize:   quote.Size,
			QuoterID:    quote.CustomerID,
			CustomerID:  cross.CustomerID,
			QuoteTID:    quote.TID,
			IsSellQuote: isSellQuote,
		})

		if bid.Size > size {
			bid.Size -= size
			heap.Push(&b.bids, bid)
		}
		if ask.Size > size {
			ask.Size -= size
			heap.Push(&b.asks, ask)
		}
	}
	return fills, nil
}

// ClearOrders removes every resting order owned by customerID from both
// sides of the book. It is a bookkeeping helper, never called by the game
// state machine itself (spec.md §4.3).
func (b *Book) ClearOrders(customerID int) {
	kept := b.bids.orderHeap[:0:0]
	for _, o := range b.bids.orderHeap {
		if o.CustomerID != customerID {
			kept = append(kept, o)
		}
	}
	b.bids.orderHeap = kept
	heap.Init(&b.bids)

	keptA := b.asks.orderHeap[:0:0]
	for _, o := range b.asks.orderHeap {
		if o.CustomerID != customerID {
			keptA = append(keptA, o)
		}
	}
	b.asks.orderHeap = keptA
	heap.Init(&b.asks)
}

// CustomerOrders returns every resting order (either side) owned by
// customerID, analogous to the original Market's GetCustomers helper.
func (b *Book) CustomerOrders(customerID int) []Order {
	var out []Order
	for _, o := range b.bids.orderHeap {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	for _, o := range b.asks.orderHeap {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out
}

// BestBid returns the highest resting bid price and true, or (0, false) if
// the bid side is empty.
func (b *Book) BestBid() (int, bool) {
	if len(b.bids.orderHeap) == 0 {
		return 0, false
	}
	return b.bids.orderHeap[0].Price, true
}

// BestAsk returns the lowest resting ask price and true, or (0, false) if
// the ask side is empty.
func (b *Book) BestAsk() (int, bool) {
	if len(b.asks.orderHeap) == 0 {
		return 0, false
	}
	return b.asks.orderHeap[0].Price, true
}

// Clone returns a deep copy of the book, independent of b.
func (b *Book) Clone() *Book {
	nb := &Book{}
	nb.bids.orderHeap = append(orderHeap{}, b.bids.orderHeap...)
	nb.asks.orderHeap = append(orderHeap{}, b.asks.orderHeap...)
	return nb
}

// String renders the resting bid and ask queues, price-time ordered.
func (b *Book) String() string {
	sortedBids := append(orderHeap{}, b.bids.orderHeap...)
	sortedAsks := append(orderHeap{}, b.asks.orderHeap...)
	insertionSort(sortedBids, func(i, j int) bool {
		if sortedBids[i].Price != sortedBids[j].Price {
			return sortedBids[i].Price > sortedBids[j].Price
		}
		return sortedBids[i].TID < sortedBids[j].TID
	})
	insertionSort(sortedAsks, func(i, j int) bool {
		if sortedAsks[i].Price != sortedAsks[j].Price {
			return sortedAsks[i].Price < sortedAsks[j].Price
		}
		return sortedAsks[i].TID < sortedAsks[j].TID
	})

	var sb strings.Builder
	sb.WriteString("bids:")
	for _, o := range sortedBids {
		fmt.Fprintf(&sb, " [%d@%d p%d]", o.Size, o.Price, o.CustomerID)
	}
	sb.WriteString("\nasks:")
	for _, o := range sortedAsks {
		fmt.Fprintf(&sb, " [%d@%d p%d]", o.Size, o.Price, o.CustomerID)
	}
	return sb.String()
}

func insertionSort(os []Order, less func(i, j int) bool) {
	for i := 1; i < len(os); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			os[j], os[j-1] = os[j-1], os[j]
		}
	}
}
