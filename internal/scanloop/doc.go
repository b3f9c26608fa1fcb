// Package scanloop связывает компоненты планировщика в один тик:
// кандидаты → финализация → due offsets → claim → батчи → публикация.
//
// Tick вызывается по фиксированному интервалу (обычно раз в 30 секунд).
// Перекрытие тиков и конкурентные экземпляры в разных процессах безопасны:
// идемпотентность обеспечивают атомарные операции ledger-а.
package scanloop
