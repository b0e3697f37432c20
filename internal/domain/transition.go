package domain

import (
	"fmt"
	"strings"
)

// TransitionMode определяет, насколько строго проверяются переходы статусов.
type TransitionMode string

const (
	// TransitionModeStrict разрешает только шаги PENDING → PAID → SHIPPED → DELIVERED.
	TransitionModeStrict TransitionMode = "strict"
	// TransitionModePermissive разрешает администратору любой переход.
	TransitionModePermissive TransitionMode = "permissive"
)

// ParseTransitionMode разбирает режим из конфигурации. Пустая строка даёт permissive.
func ParseTransitionMode(raw string) (TransitionMode, error) {
	switch TransitionMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TransitionModePermissive:
		return TransitionModePermissive, nil
	case TransitionModeStrict:
		return TransitionModeStrict, nil
	default:
		return "", fmt.Errorf("%w: unknown status policy %q", ErrValidation, raw)
	}
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

// TransitionPolicy проверяет допустимость смены статуса заказа.
// Нулевое значение работает в режиме permissive: проверяется только сам статус.
type TransitionPolicy struct {
	mode TransitionMode
}

// NewTransitionPolicy создаёт политику в заданном режиме.
// Любой режим, кроме strict, трактуется как permissive.
func NewTransitionPolicy(mode TransitionMode) TransitionPolicy {
	if mode != TransitionModeStrict {
		mode = TransitionModePermissive
	}
	return TransitionPolicy{mode: mode}
}

// Mode возвращает режим политики.
func (p TransitionPolicy) Mode() TransitionMode {
	if p.mode == "" {
		return TransitionModePermissive
	}
	return p.mode
}

// Check возвращает ErrInvalidTransition, если переход from → to запрещён.
// Переход в тот же статус всегда допустим и обрабатывается вызывающим как no-op.
func (p TransitionPolicy) Check(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrStatusInvalid
	}
	if from == to || p.Mode() == TransitionModePermissive {
		return nil
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
