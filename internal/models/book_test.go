package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookIsAvailable(t *testing.T) {
	cases := []struct {
		name      string
		available int
		status    BookStatus
		want      bool
	}{
		{"available copy", 1, BookStatusAvailable, true},
		{"no copies", 0, BookStatusAvailable, false},
		{"maintenance overrides count", 3, BookStatusMaintenance, false},
		{"lost overrides count", 3, BookStatusLost, false},
		{"borrowed with zero copies", 0, BookStatusBorrowed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			book := Book{Quantity: 3, AvailableQuantity: tc.available, Status: tc.status}
			assert.Equal(t, tc.want, book.IsAvailable())
		})
	}
}

func TestBookBorrowLastCopy(t *testing.T) {
	book := Book{Quantity: 1, AvailableQuantity: 1, Status: BookStatusAvailable}

	require.True(t, book.Borrow())
	assert.Equal(t, 0, book.AvailableQuantity)
	assert.Equal(t, BookStatusBorrowed, book.Status)
}

func TestBookBorrowKeepsStatusWhileCopiesRemain(t *testing.T) {
	book := Book{Quantity: 3, AvailableQuantity: 2, Status: BookStatusAvailable}

	require.True(t, book.Borrow())
	assert.Equal(t, 1, book.AvailableQuantity)
	assert.Equal(t, BookStatusAvailable, book.Status)
}

func TestBookBorrowUnavailableIsNoop(t *testing.T) {
	book := Book{Quantity: 1, AvailableQuantity: 0, Status: BookStatusBorrowed}

	assert.False(t, book.Borrow())
	assert.Equal(t, 0, book.AvailableQuantity)
	assert.Equal(t, BookStatusBorrowed, book.Status)
}

func TestBookReturnRestoresAvailability(t *testing.T) {
	book := Book{Quantity: 1, AvailableQuantity: 0, Status: BookStatusBorrowed}

	book.Return()
	assert.Equal(t, 1, book.AvailableQuantity)
	assert.Equal(t, BookStatusAvailable, book.Status)
}

func TestBookBorrowReturnSequenceStaysInBounds(t *testing.T) {
	book := Book{Quantity: 2, AvailableQuantity: 2, Status: BookStatusAvailable}

	require.True(t, book.Borrow())
	require.True(t, book.Borrow())
	assert.False(t, book.Borrow())

	book.Return()
	require.True(t, book.Borrow())
	book.Return()
	book.Return()

	assert.GreaterOrEqual(t, book.AvailableQuantity, 0)
	assert.LessOrEqual(t, book.AvailableQuantity, book.Quantity)
}
