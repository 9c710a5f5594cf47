package service

import (
	"errors"
	"fmt"
)

// Kind - класс ошибки, по нему handler выбирает HTTP статус
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindAlreadyExists   Kind = "already_exists"
	KindNotFound        Kind = "not_found"
	KindUnavailable     Kind = "unavailable"
)

var (
	// Сентинелы для errors.Is, совпадают с любой *Error того же Kind
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
)

// Тексты ошибок показываются пользователю без изменений
const (
	MsgInvalidRating    = "Рейтинг должен быть от 1 до 5"
	MsgCommentTooLong   = "Комментарий слишком длинный"
	MsgUnknownSort      = "Неизвестный тип сортировки"
	MsgReviewExists     = "Вы уже оставили отзыв"
	MsgReviewNotFound   = "Отзыв не найден"
	MsgSelfLike         = "Нельзя лайкнуть собственный отзыв"
	MsgInvalidUserID    = "Некорректный пользователь"
	MsgStoreUnavailable = "Сервис временно недоступен"
)

// Error - ошибка бизнес-логики с классом, сообщением и исходной причиной
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает только Kind, поэтому errors.Is(err, ErrNotFound) работает для любого сообщения
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf возвращает класс ошибки, для неизвестных ошибок - KindUnavailable
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// MessageOf возвращает текст для клиента
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return MsgStoreUnavailable
}
