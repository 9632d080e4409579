// Package service управляет жизненным циклом вспомогательных сервисов job.
//
// Каждый job получает собственные экземпляры объявленных сервисов
// (контейнер БД и т.п.), создаваемые перед первым шагом и уничтожаемые
// при завершении job независимо от исхода. Сервисы не разделяются между
// параллельными jobs — это условие безопасного fan-out без блокировок.
//
// Структура:
//   - provisioner.go — интерфейсы Provisioner/Instance
//   - docker.go      — реализация поверх Docker Engine API
package service
