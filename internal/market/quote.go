package market

import "context"

// Point is one daily close.
type Point struct {
	Date  string
	Value float64
}

// Quote is what a source returns for one ticker: the current price and the
// daily closes it knows, oldest first.
type Quote struct {
	Current float64
	History []Point
}

type Source interface {
	Quote(ctx context.Context, ticker string) (Quote, error)
}
