// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// ErrValidation — базовая ошибка проверки запроса на изменение кармы.
// Все ошибки политики оборачивают её, поэтому errors.Is(err, ErrValidation) == true.
var ErrValidation = errors.New("запрос на изменение кармы отклонён")

// Ошибки политики (sanity-check)
var (
	// ErrSelfKarmaDenied — попытка изменить карму самому себе
	ErrSelfKarmaDenied = fmt.Errorf("%w: нельзя менять карму самому себе", ErrValidation)
	// ErrRoboTargetDenied — попытка изменить карму боту
	ErrRoboTargetDenied = fmt.Errorf("%w: нельзя менять карму боту", ErrValidation)
	// ErrDeltaTooLarge — изменение больше KARMA_MAX_DIFF
	ErrDeltaTooLarge = fmt.Errorf("%w: слишком большое изменение кармы", ErrValidation)
)

// Ошибки голосований
var (
	// ErrDuplicateVoting — голосование для этого сообщения уже создано.
	// Не фатальная: событие пришло повторно, анонсировать заново не нужно.
	ErrDuplicateVoting = errors.New("голосование для этого сообщения уже существует")
)

// Ошибки хранилища
var (
	// ErrNotFound — запись не найдена
	ErrNotFound = errors.New("запись не найдена")
	// ErrStoreUnavailable — не удалось начать или зафиксировать транзакцию
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)

// Ошибки команд
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrUnknownCommand — команда не распознана
	ErrUnknownCommand = errors.New("неизвестная команда")
)
