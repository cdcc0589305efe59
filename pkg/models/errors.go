package models

import "errors"

// Таксономия ошибок ядра. Проверяются через errors.Is
var (
	// ErrInsufficientHistory индикатор или уровень требует больше свечей,
	// чем доступно; значение опускается, оценка продолжается
	ErrInsufficientHistory = errors.New("недостаточно истории")

	// ErrInvalidPositionRequest запрос на открытие позиции отклонен:
	// стоп не с той стороны, неположительный размер или нехватка капитала
	ErrInvalidPositionRequest = errors.New("некорректный запрос позиции")

	// ErrDataUnavailable источник данных недоступен или истек таймаут;
	// затронутый таймфрейм помечается недоступным, остальные продолжают
	ErrDataUnavailable = errors.New("данные недоступны")

	// ErrDegenerateRatio дистанция риска нулевая; соотношение риск/прибыль
	// не считается, а помечается недоступным
	ErrDegenerateRatio = errors.New("нулевая дистанция риска")

	// ErrPositionNotFound позиция с указанным идентификатором не найдена
	ErrPositionNotFound = errors.New("позиция не найдена")
)
