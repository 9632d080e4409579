// Package gate реализует гейт готовности вспомогательных сервисов.
//
// Гейт — явная машина состояний Starting → Polling → Healthy/Exhausted,
// а не неявный sleep: политика интервала, таймаута и количества попыток
// тестируется изолированно от runner'а.
//
// Пока гейт не открыт (Healthy), ни один зависимый шаг job не стартует.
// Исчерпание попыток закрывает гейт: job падает с SERVICE_UNAVAILABLE,
// сервис останавливается.
package gate
