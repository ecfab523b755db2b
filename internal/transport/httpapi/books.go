package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const bookNotFound = "Book not found"

type bookPayload struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Price       decimal.Decimal `json:"price"`
	Genre       string          `json:"genre"`
	Description string          `json:"description"`
	Stock       int32           `json:"stock"`
}

func toBookPayload(b domain.Book) bookPayload {
	return bookPayload{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Price:       b.Price,
		Genre:       b.Genre,
		Description: b.Description,
		Stock:       b.Stock,
	}
}

func (p bookPayload) toDomain(id int64) domain.Book {
	return domain.Book{
		ID:          id,
		Title:       p.Title,
		Author:      p.Author,
		Price:       p.Price,
		Genre:       p.Genre,
		Description: p.Description,
		Stock:       p.Stock,
	}
}

func (s *server) listBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	books, err := s.Catalog.List(r.Context(), domain.BookFilter{
		Genre:  query.Get("genre"),
		Search: query.Get("search"),
	})
	if err != nil {
		s.fail(w, r, err, bookNotFound, "Error fetching books")
		return
	}

	resp := make([]bookPayload, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookPayload(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, bookNotFound)
	if !ok {
		return
	}
	book, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, bookNotFound, "Error fetching book")
		return
	}
	writeJSON(w, http.StatusOK, toBookPayload(book))
}

func (s *server) createBook(w http.ResponseWriter, r *http.Request) {
	var req bookPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.Catalog.Create(r.Context(), req.toDomain(0))
	if err != nil {
		s.fail(w, r, err, bookNotFound, "Error adding book")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": book.ID})
}

func (s *server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, bookNotFound)
	if !ok {
		return
	}
	var req bookPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Catalog.Update(r.Context(), req.toDomain(id)); err != nil {
		s.fail(w, r, err, bookNotFound, "Error updating book")
		return
	}
	writeMessage(w, http.StatusOK, "Book updated successfully")
}

func (s *server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, bookNotFound)
	if !ok {
		return
	}
	if err := s.Catalog.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, bookNotFound, "Error deleting book")
		return
	}
	writeMessage(w, http.StatusOK, "Book deleted successfully")
}
