package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// StatusResponse is the data model sent when status endpoint is called.
type StatusResponse struct {
	RequestID string `json:"requestid"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Status provides basics details about the application to the public users.
//
//	@Summary	Service status
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/status [get]
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	resp := StatusResponse{
		RequestID: requestID,
		Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		Message:   "Hello. Books store api is available. Enjoy :)",
	}
	if err := WriteJSON(r.Context(), w, http.StatusOK, resp); err != nil {
		api.logger.Error("failed to send status response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// GetAllBooks returns the first books of the collection ordered by name.
//
//	@Summary	List books
//	@Produce	json
//	@Success	200	{array}		Book
//	@Failure	500	{object}	MessageResponse
//	@Router		/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.logger.Error("failed to get all books", zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusInternalServerError, MsgInternalServerError)
		return
	}
	if books == nil {
		books = []Book{}
	}
	api.logger.Info("success to get all books", zap.String("request.id", requestID), zap.Int("books.total", len(books)))
	if err = WriteJSON(r.Context(), w, http.StatusOK, books); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// GetOneBook returns a single book.
//
//	@Summary	Get a book
//	@Produce	json
//	@Param		id	path		string	true	"Book ID"
//	@Success	200	{object}	Book
//	@Failure	404	{object}	MessageResponse
//	@Failure	500	{object}	MessageResponse
//	@Router		/books/{id} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id := ps.ByName("id")
	book, ok := api.fetchBook(w, r, id)
	if !ok {
		return
	}
	api.logger.Info("success to get book", zap.String("book.id", id), zap.String("request.id", requestID))
	if err := WriteJSON(r.Context(), w, http.StatusOK, book); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// CreateBook stores the request body as a new book. Any json object is
// accepted and persisted as it is.
//
//	@Summary	Create a book
//	@Accept		json
//	@Produce	json
//	@Param		book	body		Book	true	"Book without id"
//	@Success	201		{object}	Book
//	@Failure	400		{object}	MessageResponse
//	@Failure	500		{object}	MessageResponse
//	@Router		/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	fields, err := DecodeRequestObject(r)
	if err != nil {
		api.logger.Error("failed to decode book", zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusBadRequest, MsgInvalidRequestBody)
		return
	}

	book, err := api.bookService.Add(r.Context(), fields)
	if err != nil {
		api.logger.Error("failed to create book", zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusInternalServerError, MsgInternalServerError)
		return
	}
	api.logger.Info("success to create book", zap.String("book.id", book.ID()), zap.String("request.id", requestID))
	if err = WriteJSON(r.Context(), w, http.StatusCreated, book); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// UpdateBook overwrites the fields present in the body of an existing book.
// Fields sent as null are set to null.
//
//	@Summary	Update a book
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string	true	"Book ID"
//	@Param		book	body		Book	true	"Fields to overwrite"
//	@Success	200		{object}	MessageResponse
//	@Failure	400		{object}	MessageResponse
//	@Failure	404		{object}	MessageResponse
//	@Failure	500		{object}	MessageResponse
//	@Router		/books/{id} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id := ps.ByName("id")
	if _, ok := api.fetchBook(w, r, id); !ok {
		return
	}

	fields, err := DecodeRequestObject(r)
	if err != nil {
		api.logger.Error("failed to decode book update", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusBadRequest, MsgInvalidRequestBody)
		return
	}

	err = api.bookService.Update(r.Context(), id, fields)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.String("book.id", id), zap.String("request.id", requestID))
		api.sendMessage(w, r, http.StatusNotFound, MsgBookNotFound)
		return
	}
	if err != nil {
		api.logger.Error("failed to update book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusInternalServerError, MsgInternalServerError)
		return
	}
	api.logger.Info("success to update book", zap.String("book.id", id), zap.String("request.id", requestID))
	api.sendMessage(w, r, http.StatusOK, MsgBookUpdated)
}

// DeleteOneBook removes an existing book.
//
//	@Summary	Delete a book
//	@Produce	json
//	@Param		id	path		string	true	"Book ID"
//	@Success	200	{object}	MessageResponse
//	@Failure	404	{object}	MessageResponse
//	@Failure	500	{object}	MessageResponse
//	@Router		/books/{id} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	id := ps.ByName("id")
	if _, ok := api.fetchBook(w, r, id); !ok {
		return
	}

	err := api.bookService.Delete(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.String("book.id", id), zap.String("request.id", requestID))
		api.sendMessage(w, r, http.StatusNotFound, MsgBookNotFound)
		return
	}
	if err != nil {
		api.logger.Error("failed to delete book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusInternalServerError, MsgInternalServerError)
		return
	}
	api.logger.Info("success to delete book", zap.String("book.id", id), zap.String("request.id", requestID))
	api.sendMessage(w, r, http.StatusOK, MsgBookDeleted)
}

// fetchBook loads the book with the given id. When it fails, the 404 or 500
// response is already sent and false is returned.
func (api *APIHandler) fetchBook(w http.ResponseWriter, r *http.Request, id string) (Book, bool) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	book, err := api.bookService.GetOne(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		api.logger.Error("book does not exist", zap.String("book.id", id), zap.String("request.id", requestID))
		api.sendMessage(w, r, http.StatusNotFound, MsgBookNotFound)
		return book, false
	}
	if err != nil {
		api.logger.Error("failed to get book", zap.String("book.id", id), zap.String("request.id", requestID), zap.Error(err))
		api.sendMessage(w, r, http.StatusInternalServerError, MsgInternalServerError)
		return book, false
	}
	return book, true
}

// sendMessage writes a message response and logs when it could not be sent.
func (api *APIHandler) sendMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	if err := WriteMessage(r.Context(), w, status, message); err != nil {
		api.logger.Error("failed to send response",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.Int("response.status", status),
			zap.Error(err),
		)
	}
}
