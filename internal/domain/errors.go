package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок, которые транспортный слой переводит в стабильные статусы.
var (
	// ErrInvalidInput — некорректные входные данные (пустая корзина, отрицательная цена и т.п.).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound — сущность отсутствует или не принадлежит запрашивающему.
	ErrNotFound = errors.New("not found")
	// ErrStoreFailure — любая ошибка хранилища.
	ErrStoreFailure = errors.New("store failure")
	// ErrUnauthenticated — нет учётных данных или они недействительны.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden — пользователь аутентифицирован, но прав недостаточно.
	ErrForbidden = errors.New("forbidden")
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка некорректного идентификатора книги в позиции.
	ErrItemBookInvalid = errors.New("item book id must be positive")
	// Ошибка, если позиция ссылается на книгу, которой нет в каталоге.
	ErrItemBookUnknown = errors.New("item book not found in catalog")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Цена или сумма не помещается в денежную колонку без округления.
	ErrItemPricePrecision = errors.New("item price must have at most 2 decimal places and fewer than 11 integer digits")
	ErrAmountPrecision    = errors.New("total_amount must have at most 2 decimal places and fewer than 11 integer digits")
	// ErrTotalMismatch — сумма заказа не равна сумме позиций (только в режиме verify).
	ErrTotalMismatch = errors.New("total amount does not match items sum")

	// ErrOrderNotFound возвращается, если заказа нет или он принадлежит другому пользователю.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOrderCreationFailed — запись заказа не удалась, транзакция откатена целиком.
	ErrOrderCreationFailed = fmt.Errorf("order creation failed: %w", ErrStoreFailure)

	// ErrBookNotFound возвращается, если книги нет в каталоге.
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)
	// Ошибки валидации книги.
	ErrBookTitleRequired  = errors.New("title is required")
	ErrBookAuthorRequired = errors.New("author is required")
	ErrBookGenreRequired  = errors.New("genre is required")
	ErrBookPriceInvalid   = errors.New("price must be non-negative")
	ErrBookStockInvalid   = errors.New("stock must be non-negative")
	ErrBookPricePrecision = errors.New("price must have at most 2 decimal places and fewer than 11 integer digits")

	// ErrUserNotFound возвращается, если пользователя нет.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrUserExists — username или email уже заняты.
	ErrUserExists = errors.New("username or email already exists")
	// ErrInvalidPassword — пароль не совпал с сохранённым хешем.
	ErrInvalidPassword = errors.New("invalid password")
	// Ошибки валидации регистрации.
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InvalidInput оборачивает список замечаний валидации в категорию ErrInvalidInput.
func InvalidInput(errs ...error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

// IsNotFound проверяет, относится ли ошибка к категории ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Reasons возвращает тексты замечаний валидации из ошибки категории ErrInvalidInput.
func Reasons(err error) []string {
	if !errors.Is(err, ErrInvalidInput) {
		return nil
	}
	var reasons []string
	collectReasons(err, &reasons)
	return reasons
}

func collectReasons(err error, out *[]string) {
	if err == nil || err == ErrInvalidInput {
		return
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectReasons(inner, out)
		}
	default:
		*out = append(*out, err.Error())
	}
}
