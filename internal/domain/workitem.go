package domain

import "github.com/google/uuid"

// PushWorkItem — единица работы "этот push для этого offset".
//
// Эфемерна: живёт только внутри одного тика scan loop, не персистится.
// Для wall-clock pushTime создаётся по одной на каждый due offset,
// для absolute — ровно одна с Offset == OffsetAbsolute.
type PushWorkItem struct {
	// PushID — запись PushStatus, по которой идёт отправка.
	PushID uuid.UUID `json:"pushId"`

	// Payload — тело сообщения.
	Payload string `json:"payload"`

	// Query — исходный предикат выборки получателей.
	Query string `json:"query"`

	// Offset — ключ offset (минуты к западу от UTC) либо OffsetAbsolute.
	Offset UTCOffset `json:"offset"`

	// Zones — зоны, разделяющие этот offset; сужают выборку получателей.
	// Пустой список для absolute-time.
	Zones []string `json:"zones,omitempty"`

	// Distribution — диапазон бакетов эксперимента записи (nil вне экспериментов).
	Distribution *Distribution `json:"distribution,omitempty"`
}

// Recipient — получатель с разрешённым device token.
type Recipient struct {
	// InstallationID — идентификатор установки.
	InstallationID string `json:"installationId"`

	// DeviceToken — транспортный токен устройства.
	DeviceToken string `json:"deviceToken"`
}

// TransmitResult — результат доставки одному получателю.
type TransmitResult struct {
	// InstallationID — получатель.
	InstallationID string `json:"installationId"`

	// Transmitted — дошло ли сообщение до транспортного шлюза.
	Transmitted bool `json:"transmitted"`
}

// PushBatch — work item, суженный до страницы получателей.
// Ровно одна публикация в очередь на батч; воркеры потребляют at-least-once.
type PushBatch struct {
	// PushID — запись PushStatus, по которой идёт отправка.
	PushID uuid.UUID `json:"pushId"`

	// Offset — ключ offset work item-а (для отчёта в ledger).
	Offset UTCOffset `json:"offset"`

	// Payload — тело сообщения.
	Payload string `json:"payload"`

	// InstallationIDs — идентификаторы получателей этого батча.
	InstallationIDs []string `json:"installationIds"`
}
