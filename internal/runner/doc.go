// Package runner выполняет шаги одного job.
//
// Шаги выполняются строго последовательно; первый ненулевой код выхода
// прерывает оставшиеся шаги и записывается как причина падения job.
// Окружение каждого шага собирается заново из статической конфигурации,
// значений осей и адресов сервисов — шаг не может изменить окружение
// соседнего шага.
//
// Runner никогда не повторяет упавший шаг: retry, если нужен, — политика
// уровня job (внешний повторный запуск), не уровня шага.
package runner
