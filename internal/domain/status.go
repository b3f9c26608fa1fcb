package domain

// PushState — статус жизненного цикла PushStatus.
//
// Жизненный цикл:
//
//	SCHEDULED → RUNNING → SUCCEEDED
//	                    ↘ FAILED
//
// Терминальные статусы (SUCCEEDED, FAILED) необратимы: запись в терминальном
// статусе никогда не попадает обратно в scan loop.
type PushState string

const (
	// PushStateScheduled — push создан и ждёт своего окна отправки.
	PushStateScheduled PushState = "scheduled"

	// PushStateRunning — по push уже есть отданные в доставку батчи.
	PushStateRunning PushState = "running"

	// PushStateSucceeded — push завершён, хотя бы одно устройство получило сообщение.
	PushStateSucceeded PushState = "succeeded"

	// PushStateFailed — push завершён, ни одно устройство не получило сообщение.
	PushStateFailed PushState = "failed"
)

// IsTerminal возвращает true, если статус финальный (push завершён).
func (s PushState) IsTerminal() bool {
	switch s {
	case PushStateSucceeded, PushStateFailed:
		return true
	default:
		return false
	}
}

// CampaignState — статус кампании.
type CampaignState string

const (
	// CampaignStateActive — кампания активна, планировщик создаёт для неё pushes.
	CampaignStateActive CampaignState = "active"

	// CampaignStatePaused — кампания приостановлена, новые pushes не создаются.
	CampaignStatePaused CampaignState = "paused"
)
