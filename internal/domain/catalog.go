package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Book — позиция каталога.
type Book struct {
	ID          int64
	Title       string
	Author      string
	Price       decimal.Decimal
	Genre       string
	Description string
	Stock       int32
}

// BookFilter задаёт фильтры выборки каталога. Пустые поля не фильтруют.
type BookFilter struct {
	// Genre — точное совпадение жанра.
	Genre string
	// Search — подстрока в названии или авторе без учёта регистра.
	Search string
}

// Validate проверяет обязательные поля книги.
func (b *Book) Validate() []error {
	var errs []error

	if strings.TrimSpace(b.Title) == "" {
		errs = append(errs, ErrBookTitleRequired)
	}
	if strings.TrimSpace(b.Author) == "" {
		errs = append(errs, ErrBookAuthorRequired)
	}
	if strings.TrimSpace(b.Genre) == "" {
		errs = append(errs, ErrBookGenreRequired)
	}
	if b.Price.IsNegative() {
		errs = append(errs, ErrBookPriceInvalid)
	} else if !FitsMoney(b.Price) {
		errs = append(errs, ErrBookPricePrecision)
	}
	if b.Stock < 0 {
		errs = append(errs, ErrBookStockInvalid)
	}

	return errs
}

// Matches применяет фильтр к книге; используется in-memory хранилищем.
func (f BookFilter) Matches(b Book) bool {
	if f.Genre != "" && b.Genre != f.Genre {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle)
}

// User — зарегистрированный покупатель или администратор.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
}
