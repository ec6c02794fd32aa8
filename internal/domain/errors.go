package domain

import "errors"

// Сигнальные ошибки доменного слоя. Хендлеры транслируют их в HTTP-статусы
// через errors.Is.
var (
	// ErrNotFound — элемент не существует или принадлежит другой
	// комнате/команде
	ErrNotFound = errors.New("not found")

	// ErrForbidden — роль участника недостаточна для операции
	ErrForbidden = errors.New("forbidden")

	// ErrRestorePathNotFound — исходное родительское расположение удалено
	// или больше не существует; пользователь должен сначала восстановить
	// родителя
	ErrRestorePathNotFound = errors.New("restore path not found")

	// ErrAlreadyDeleted — элемент уже находится в корзине
	ErrAlreadyDeleted = errors.New("already deleted")
)
