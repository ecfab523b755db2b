package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	// OrderStatusPending — статус по умолчанию, который хранилище присваивает новому заказу.
	// Переходы между статусами в этом сервисе не выполняются.
	OrderStatusPending OrderStatus = "pending"
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID присваивается хранилищем в порядке вставки.
	ID       int64
	OrderID  int64
	BookID   int64 // ссылка на books.id
	Quantity int32
	// Цена за единицу на момент оформления.
	Price    decimal.Decimal
}

// Order агрегирует заголовок заказа и его позиции.
type Order struct {
	ID          int64
	UserID      int64
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Items       []OrderItem
	CreatedAt   time.Time
}

// CartItem описывает строку корзины от клиента.
type CartItem struct {
	BookID   int64
	Quantity int32
	Price    decimal.Decimal
}

// NewOrder описывает заказ до записи в хранилище: идентификатор, статус и время
// создания назначает хранилище.
type NewOrder struct {
	UserID      int64
	Items       []CartItem
	TotalAmount decimal.Decimal
}

// ValidateInvariants проверяет входные данные заказа и возвращает список замечаний.
// Сумма заказа здесь не сверяется с позициями: это решает политика сервиса.
func (o *NewOrder) ValidateInvariants() []error {
	var errs []error

	if o.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	} else if !FitsMoney(o.TotalAmount) {
		errs = append(errs, ErrAmountPrecision)
	}

	for _, item := range o.Items {
		if item.BookID <= 0 {
			errs = append(errs, ErrItemBookInvalid)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		} else if !FitsMoney(item.Price) {
			errs = append(errs, ErrItemPricePrecision)
		}
	}

	return errs
}

// Денежные колонки хранилищ: NUMERIC(12, 2).
const (
	MoneyScale   = 2
	moneyMaxUnit = 10_000_000_000
)

// FitsMoney сообщает, сохранится ли значение без округления:
// не больше MoneyScale знаков после запятой и модуль меньше 10^10.
func FitsMoney(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(MoneyScale)) && v.Abs().LessThan(decimal.NewFromInt(moneyMaxUnit))
}

// ItemsTotal считает сумму позиций: Σ price × quantity.
func (o *NewOrder) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}

// TotalMatchesItems сообщает, совпадает ли присланная сумма с суммой позиций.
func (o *NewOrder) TotalMatchesItems() bool {
	return o.TotalAmount.Equal(o.ItemsTotal())
}
