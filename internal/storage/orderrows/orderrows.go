// Package orderrows сворачивает плоский результат LEFT JOIN orders × order_items
// в список заказов с позициями. Используется SQL-хранилищами (postgres, sqlite).
package orderrows

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Row — одна строка выборки. Колонки позиции пусты (NULL), если у заказа нет позиций.
type Row struct {
	OrderID     int64
	UserID      int64
	TotalAmount decimal.Decimal
	Status      string
	CreatedAt   time.Time

	ItemID   sql.NullInt64
	BookID   sql.NullInt64
	Quantity sql.NullInt32
	Price    decimal.NullDecimal
}

// Folder накапливает строки и группирует их по заказу.
// Порядок заказов совпадает с порядком первого появления в выборке,
// порядок позиций внутри заказа: с порядком строк.
type Folder struct {
	orders []domain.Order
	index  map[int64]int
}

// NewFolder создаёт пустой Folder.
func NewFolder() *Folder {
	return &Folder{index: make(map[int64]int)}
}

// Add добавляет строку выборки.
func (f *Folder) Add(row Row) {
	pos, ok := f.index[row.OrderID]
	if !ok {
		f.orders = append(f.orders, domain.Order{
			ID:          row.OrderID,
			UserID:      row.UserID,
			TotalAmount: row.TotalAmount,
			Status:      domain.OrderStatus(row.Status),
			CreatedAt:   row.CreatedAt,
			Items:       []domain.OrderItem{},
		})
		pos = len(f.orders) - 1
		f.index[row.OrderID] = pos
	}

	if !row.ItemID.Valid {
		return
	}

	f.orders[pos].Items = append(f.orders[pos].Items, domain.OrderItem{
		ID:       row.ItemID.Int64,
		OrderID:  row.OrderID,
		BookID:   row.BookID.Int64,
		Quantity: row.Quantity.Int32,
		Price:    row.Price.Decimal,
	})
}

// Orders возвращает собранные заказы. Никогда не nil.
func (f *Folder) Orders() []domain.Order {
	if f.orders == nil {
		return []domain.Order{}
	}
	return f.orders
}

// Len возвращает количество различных заказов.
func (f *Folder) Len() int {
	return len(f.orders)
}

// Assemble сворачивает готовый срез строк.
func Assemble(rows []Row) []domain.Order {
	f := NewFolder()
	for _, row := range rows {
		f.Add(row)
	}
	return f.Orders()
}
