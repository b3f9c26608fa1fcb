// Package batch разворачивает PushWorkItem в батчи ограниченного размера
// через keyset-пагинацию хранилища получателей.
package batch
