package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий режиссёра волн
const (
	EventWaveStarted   = "WaveStarted"
	EventWaveCleared   = "WaveCleared"
	EventEnemyDefeated = "EnemyDefeated"
	EventRunEnded      = "RunEnded"
)

// SchemaVersion — версия схемы полезной нагрузки
const SchemaVersion = 1

// WaveStartedPayload публикуется при старте каждой волны
type WaveStartedPayload struct {
	WaveNumber    int    `json:"wave_number"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Subtitle      string `json:"subtitle"`
	EnemyCount    int    `json:"enemy_count"`
	SpawnInterval string `json:"spawn_interval"`
}

// WaveClearedPayload публикуется после зачистки волны
type WaveClearedPayload struct {
	WaveNumber int    `json:"wave_number"`
	Name       string `json:"name"`
	Type       string `json:"type"`
}

// EnemyDefeatedPayload публикуется для каждого засчитанного убийства
type EnemyDefeatedPayload struct {
	WaveNumber int    `json:"wave_number"`
	Variant    string `json:"variant"`
}

// RunEndedPayload публикуется при завершении забега
type RunEndedPayload struct {
	RunID           string  `json:"run_id"`
	WavesCleared    int     `json:"waves_cleared"`
	EnemiesDefeated int     `json:"enemies_defeated"`
	HighestWave     int     `json:"highest_wave"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// NewEnvelope сериализует payload в JSON и оборачивает его в Envelope
func NewEnvelope(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   SchemaVersion,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку события в out
func Decode(ev *Envelope, out interface{}) error {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return nil
}
