// Package common содержит общие для репозиториев ошибки и
// универсальные helpers работы с базой.
package common

import "errors"

var (
	// ErrNotFound возвращается, когда запись отсутствует в базе.
	ErrNotFound = errors.New("запись не найдена")
	// ErrAlreadyExists возвращается при нарушении уникальности.
	ErrAlreadyExists = errors.New("запись уже существует")
)
