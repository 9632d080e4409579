// Package engine содержит движок развёртки pipeline.
//
// Включает:
//   - parser.go — парсинг и валидация документа pipeline (YAML)
//   - matrix.go — развёртка матрицы осей в список JobSpec
//   - guard.go  — вычисление условий when по значениям осей
//
// Engine — чистый слой без побочных эффектов: документ → валидация →
// детерминированный список комбинаций. Это то, что делает повторные
// запуски воспроизводимыми.
package engine
